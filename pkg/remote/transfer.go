package remote

import (
	"context"

	"github.com/oneconcern/irmin/pkg/core/status"
	"github.com/oneconcern/irmin/pkg/errors"
	"github.com/oneconcern/irmin/pkg/hash"
	"github.com/oneconcern/irmin/pkg/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type staged struct {
	key     model.KindedKey
	data    []byte
	parents []hash.Hash
}

// commit to visit, at some distance from the transferred head
type pending struct {
	h     hash.Hash
	depth int
}

// transfer of the closure of a commit from a source to a destination
type transfer struct {
	*Sync
	src, dst  endpoint
	depth     int
	operation string

	seen     map[model.KindedKey]struct{}
	contents []model.KindedKey
	nodes    []staged // children before their parent
	commits  map[hash.Hash]staged
	order    []hash.Hash
}

func (s *Sync) transfer(ctx context.Context, src, dst endpoint, head hash.Hash, depth int, operation string) (int, error) {
	t := &transfer{
		Sync:      s,
		src:       src,
		dst:       dst,
		depth:     depth,
		operation: operation,
		seen:      make(map[model.KindedKey]struct{}),
		commits:   make(map[hash.Hash]staged),
	}
	if err := t.collectCommits(ctx, head); err != nil {
		return 0, err
	}
	s.l.Debug("objects to transfer",
		zap.String("operation", operation),
		zap.Stringer("from", src), zap.Stringer("to", dst),
		zap.Int("commits", len(t.commits)), zap.Int("nodes", len(t.nodes)), zap.Int("contents", len(t.contents)),
	)
	if err := t.write(ctx); err != nil {
		return 0, err
	}
	return len(t.contents) + len(t.nodes) + len(t.commits), nil
}

// collectCommits walks the history of the source breadth first, down to depth.
//
// Commits the destination already has are not transferred, but their ancestors are still visited:
// this completes a history left truncated by a shallow transfer.
func (t *transfer) collectCommits(ctx context.Context, head hash.Hash) error {
	queue := []pending{{h: head}}
	t.seen[model.KindedKey{Kind: model.KindCommit, Hash: head}] = struct{}{}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		current := queue[0]
		queue = queue[1:]
		key := model.KindedKey{Kind: model.KindCommit, Hash: current.h}

		// a stored commit comes with its tree, but its history may have been truncated by an earlier transfer
		found, err := t.dst.Has(ctx, key)
		if err != nil {
			return err
		}
		if found {
			parents, err := t.storedParents(ctx, key)
			if err != nil {
				return err
			}
			t.enqueueParents(&queue, current, parents)
			continue
		}

		data, err := t.src.Get(ctx, key)
		if err != nil {
			if current.h != head && errors.Is(err, status.ErrNotFound) {
				t.l.Debug("source history is truncated", zap.Stringer("commit", current.h))
				continue
			}
			return err
		}
		value, err := t.objects.Commits.Decode(data)
		if err != nil {
			return err
		}
		if err := t.collectNode(ctx, value.Node); err != nil {
			return err
		}
		t.commits[current.h] = staged{key: key, data: data, parents: value.Parents}
		t.order = append(t.order, current.h)

		t.enqueueParents(&queue, current, value.Parents)
	}
	return nil
}

func (t *transfer) enqueueParents(queue *[]pending, current pending, parents []hash.Hash) {
	if t.depth > 0 && current.depth >= t.depth {
		return
	}
	for _, parent := range parents {
		parentKey := model.KindedKey{Kind: model.KindCommit, Hash: parent}
		if _, ok := t.seen[parentKey]; ok {
			continue
		}
		t.seen[parentKey] = struct{}{}
		*queue = append(*queue, pending{h: parent, depth: current.depth + 1})
	}
}

// storedParents reads the parents of a commit held by the destination, from the local repository when it has it
func (t *transfer) storedParents(ctx context.Context, key model.KindedKey) ([]hash.Hash, error) {
	data, err := local{t.objects}.Get(ctx, key)
	if errors.Is(err, status.ErrNotFound) {
		data, err = t.dst.Get(ctx, key)
	}
	if err != nil {
		return nil, err
	}
	value, err := t.objects.Commits.Decode(data)
	if err != nil {
		return nil, err
	}
	return value.Parents, nil
}

func (t *transfer) collectNode(ctx context.Context, h hash.Hash) error {
	key := model.NodeKey(h)
	if _, ok := t.seen[key]; ok {
		return nil
	}
	t.seen[key] = struct{}{}

	// a stored node comes with all its children
	found, err := t.dst.Has(ctx, key)
	if err != nil || found {
		return err
	}

	data, err := t.src.Get(ctx, key)
	if err != nil {
		return err
	}
	value, err := t.objects.Nodes.Decode(data)
	if err != nil {
		return err
	}

	for _, entry := range value.Entries {
		if entry.Kind == model.KindNode {
			if err := t.collectNode(ctx, entry.Hash); err != nil {
				return err
			}
			continue
		}
		if err := t.collectContents(ctx, entry.Hash); err != nil {
			return err
		}
	}
	t.nodes = append(t.nodes, staged{key: key, data: data})
	return nil
}

func (t *transfer) collectContents(ctx context.Context, h hash.Hash) error {
	key := model.ContentsKey(h)
	if _, ok := t.seen[key]; ok {
		return nil
	}
	t.seen[key] = struct{}{}

	found, err := t.dst.Has(ctx, key)
	if err != nil || found {
		return err
	}
	t.contents = append(t.contents, key)
	return nil
}

// write all collected objects bottom-up
func (t *transfer) write(ctx context.Context) error {
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(t.concurrency)
	for _, toPin := range t.contents {
		key := toPin
		group.Go(func() error {
			data, err := t.src.Get(gctx, key)
			if err != nil {
				return err
			}
			return t.put(gctx, key, data)
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	for _, node := range t.nodes {
		if err := t.put(ctx, node.key, node.data); err != nil {
			return err
		}
	}

	// parents before children
	written := make(map[hash.Hash]struct{}, len(t.commits))
	var writeCommit func(hash.Hash) error
	writeCommit = func(h hash.Hash) error {
		c, staged := t.commits[h]
		if !staged {
			return nil
		}
		if _, done := written[h]; done {
			return nil
		}
		written[h] = struct{}{}
		for _, parent := range c.parents {
			if err := writeCommit(parent); err != nil {
				return err
			}
		}
		return t.put(ctx, c.key, c.data)
	}
	for i := len(t.order) - 1; i >= 0; i-- {
		if err := writeCommit(t.order[i]); err != nil {
			return err
		}
	}
	return nil
}

func (t *transfer) put(ctx context.Context, key model.KindedKey, data []byte) error {
	if err := t.dst.Put(ctx, key, data); err != nil {
		return err
	}
	if t.m != nil {
		t.m.Volume.Objects.Inc(key.Kind.String(), t.operation)
		t.m.Volume.Objects.Size(int64(len(data)), key.Kind.String(), t.operation)
	}
	return nil
}
