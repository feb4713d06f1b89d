package memory

import (
	"context"
	"strings"
	"time"
)

// Memo is a single fact the service learned about a client and may
// reuse in later conversations when the client opted in.
type Memo struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ChatID    string    `json:"chat_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists and retrieves long-lived client memos.
type Store interface {
	Save(ctx context.Context, memo Memo) error
	Recent(ctx context.Context, userID string, limit int) ([]Memo, error)
	Relevant(ctx context.Context, userID, query string, limit int) ([]Memo, error)
	Close() error
}

// rankByOverlap orders memos by shared-token count with the query and
// keeps the top limit entries. Memos with no overlap are dropped.
func rankByOverlap(memos []Memo, query string, limit int) []Memo {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return nil
	}

	type scored struct {
		memo  Memo
		score int
	}
	var ranked []scored
	for _, m := range memos {
		score := 0
		for tok := range tokenize(m.Text) {
			if queryTokens[tok] {
				score++
			}
		}
		if score > 0 {
			ranked = append(ranked, scored{memo: m, score: score})
		}
	}

	// Stable selection sort keeps insertion order among ties.
	for i := 0; i < len(ranked); i++ {
		best := i
		for j := i + 1; j < len(ranked); j++ {
			if ranked[j].score > ranked[best].score {
				best = j
			}
		}
		ranked[i], ranked[best] = ranked[best], ranked[i]
	}

	if limit <= 0 || limit > len(ranked) {
		limit = len(ranked)
	}
	out := make([]Memo, 0, limit)
	for _, s := range ranked[:limit] {
		out = append(out, s.memo)
	}
	return out
}

func tokenize(text string) map[string]bool {
	tokens := make(map[string]bool)
	for _, field := range strings.Fields(strings.ToLower(text)) {
		tok := strings.Trim(field, ".,!?;:'\"()")
		if len(tok) > 2 {
			tokens[tok] = true
		}
	}
	return tokens
}
