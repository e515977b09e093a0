package chat

import (
	"context"

	"github.com/tbxark/formviewer/store"
	"github.com/tbxark/formviewer/types"
)

// HistoryStore persists the ordered turn history of the active session.
// The history is append-only: turns are never reordered, rewritten or
// dropped, because the submission payload replays it verbatim.
type HistoryStore struct {
	store store.Store[[]*types.Turn]
}

func NewHistoryStore(core store.Cache[[]*types.Turn]) *HistoryStore {
	return &HistoryStore{store: store.NewStore(core, "viewer:history")}
}

func NewMemoryHistoryStore() *HistoryStore {
	return NewHistoryStore(store.NewMemoryCache[[]*types.Turn]())
}

func (s *HistoryStore) Load(ctx context.Context) ([]*types.Turn, error) {
	hist, ok, err := s.store.Get(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return hist, nil
}

func (s *HistoryStore) Save(ctx context.Context, history []*types.Turn) error {
	return s.store.Set(ctx, history)
}

func (s *HistoryStore) Clear(ctx context.Context) error {
	return s.store.Del(ctx)
}

// Append loads the history, appends turns and saves. It returns the saved
// history for convenient passing to a transport request.
func (s *HistoryStore) Append(ctx context.Context, turns ...*types.Turn) ([]*types.Turn, error) {
	hist, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	for _, turn := range turns {
		if turn == nil {
			continue
		}
		hist = append(hist, turn)
	}
	if err := s.Save(ctx, hist); err != nil {
		return nil, err
	}
	return hist, nil
}
