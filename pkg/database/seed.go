package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// SeedConfig controls the development data set.
type SeedConfig struct {
	Users         int
	ThreadReplies int
}

func DefaultSeedConfig() SeedConfig {
	return SeedConfig{Users: 4, ThreadReplies: 2}
}

// SeedMessage is one message the seeder asks the caller to send.
type SeedMessage struct {
	SenderID    uuid.UUID
	RecipientID uuid.UUID
	Content     string
	Metadata    map[string]interface{}
	ParentID    *uuid.UUID
}

// Sender persists a seed message through the normal send path and returns its id.
type Sender func(ctx context.Context, msg SeedMessage) (uuid.UUID, error)

type SeedResult struct {
	Users    []uuid.UUID
	Messages []uuid.UUID
}

var sampleMessages = []struct {
	content  string
	metadata map[string]interface{}
}{
	{"Hi, are you available for a kitchen renovation next month?", map[string]interface{}{"title": "Kitchen renovation"}},
	{"Yes, I have openings in the second week.", nil},
	{"Great, could you send a rough quote?", map[string]interface{}{"tags": []string{"quote"}}},
	{"Sure, I'll put one together after the site visit.", nil},
}

// Seed sends a short conversation between every pair of users and a thread under the
// first message of each pair.
func Seed(ctx context.Context, cfg SeedConfig, send Sender) (SeedResult, error) {
	if cfg.Users < 2 {
		return SeedResult{}, fmt.Errorf("seed needs at least 2 users, got %d", cfg.Users)
	}

	result := SeedResult{Users: make([]uuid.UUID, cfg.Users)}
	for i := range result.Users {
		result.Users[i] = uuid.New()
	}

	for i := 0; i < len(result.Users); i++ {
		for j := i + 1; j < len(result.Users); j++ {
			a, b := result.Users[i], result.Users[j]
			var first uuid.UUID
			for k, sample := range sampleMessages {
				from, to := a, b
				if k%2 == 1 {
					from, to = b, a
				}
				id, err := send(ctx, SeedMessage{SenderID: from, RecipientID: to, Content: sample.content, Metadata: sample.metadata})
				if err != nil {
					return result, fmt.Errorf("failed to seed message: %w", err)
				}
				if k == 0 {
					first = id
				}
				result.Messages = append(result.Messages, id)
			}

			for r := 0; r < cfg.ThreadReplies; r++ {
				parent := first
				id, err := send(ctx, SeedMessage{
					SenderID:    b,
					RecipientID: a,
					Content:     fmt.Sprintf("Follow-up %d on the renovation request", r+1),
					ParentID:    &parent,
				})
				if err != nil {
					return result, fmt.Errorf("failed to seed thread reply: %w", err)
				}
				result.Messages = append(result.Messages, id)
			}
		}
	}
	return result, nil
}
