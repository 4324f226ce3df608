package private

import (
	"context"
	"fmt"

	"github.com/wnfs-go/wnfs/base"
)

// History walks n's ratchet chain backward from its current position
// to the oldest position store has recorded for n's INumber, yielding
// one HistoryEntry per intermediate ratchet step that actually has a
// forest entry (some steps advance a directory's ratchet without the
// directory itself being persisted at that exact position — only its
// child was). Most recent first. Grounded on private.go's
// Tree.History/File.History (the history() helper), adapted to
// ratchet.Spiral.Previous's contract (already includes n's current
// position as its first, most-recent entry once reversed).
func History(ctx context.Context, n Node, forest *Forest, store Store, maxRevs int) ([]base.HistoryEntry, error) {
	header := n.Header()

	old, err := store.OldestKnownRatchet(ctx, header.INumber.Encode())
	if err != nil {
		return nil, fmt.Errorf("private: history: %w", err)
	}

	ratchets, err := header.Ratchet.Previous(old, maxRevs)
	if err != nil {
		return nil, fmt.Errorf("private: history: %w", err)
	}
	log.Debugw("private.History", "inumber", header.INumber.Encode(), "len(ratchets)", len(ratchets))

	out := make([]base.HistoryEntry, 0, len(ratchets))
	for _, r := range ratchets {
		ratchetKey := r.Key()
		saturated := header.GetSaturatedNameWithKey(ratchetKey)
		ref := PrivateRef{
			SaturatedNameHash: saturated.Hash(),
			ContentKey:        contentKeyFromRatchetKey(ratchetKey),
			RatchetKey:        Key(ratchetKey),
		}

		blockCID, found, err := forest.GetEncrypted(ctx, ref.SaturatedNameHash)
		if err != nil {
			return nil, fmt.Errorf("private: history: %w", err)
		}
		if !found {
			continue
		}
		env, _, err := forest.Get(ctx, store, ref)
		if err != nil {
			log.Debugw("private.History", "err", err)
			continue
		}

		out = append(out, base.HistoryEntry{
			Cid:         blockCID,
			Size:        env.Info.Size,
			Type:        env.Info.Type,
			Mtime:       env.Info.Mtime,
			Key:         ref.RatchetKey.Encode(),
			PrivateName: string(ref.Name()),
		})
	}

	return out, nil
}
