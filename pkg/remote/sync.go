package remote

import (
	"context"
	"time"

	"github.com/oneconcern/irmin/pkg/commit"
	"github.com/oneconcern/irmin/pkg/core/status"
	"github.com/oneconcern/irmin/pkg/hash"
	"github.com/oneconcern/irmin/pkg/metrics"
	"github.com/oneconcern/irmin/pkg/model"
	"github.com/oneconcern/irmin/pkg/objects"
	"go.uber.org/zap"
)

// Sync transfers objects between a local repository and remotes
type Sync struct {
	objects     *objects.Store
	graph       *commit.Graph
	l           *zap.Logger
	concurrency int

	metrics.Enable
	m *M
}

// New synchronizer for the repository holding this commit graph
func New(graph *commit.Graph, opts ...Option) *Sync {
	s := &Sync{
		objects:     graph.Trees().Objects(),
		graph:       graph,
		l:           zap.NewNop(),
		concurrency: DefaultConcurrency,
	}
	for _, apply := range opts {
		apply(s)
	}
	if s.MetricsEnabled() {
		s.m = s.EnsureMetrics("remote", &M{}).(*M)
	}
	return s
}

// Fetch the objects reachable from the remote head which are missing locally, up to depth
// ancestor hops from the head. A depth of zero or less transfers the whole history.
//
// No local branch is updated. Fetching twice from an unchanged remote transfers nothing the second time.
func (s *Sync) Fetch(ctx context.Context, r Remote, depth int) (res Result, err error) {
	if s.m != nil {
		defer func(t0 time.Time) {
			s.m.Usage.UsedAll(t0, "Fetch")(err)
		}(time.Now())
	}

	head, found, err := r.Head(ctx)
	if err != nil {
		return Result{}, err
	}
	if !found {
		return Result{}, status.ErrNoHead.WrapMessage("remote %v", r)
	}

	n, err := s.transfer(ctx, r, local{s.objects}, head, depth, "fetch")
	if err != nil {
		return Result{}, err
	}
	s.l.Info("fetched", zap.Stringer("remote", r), zap.Stringer("head", head), zap.Int("objects", n))
	return Result{Head: head, Objects: n}, nil
}

// Push the objects reachable from a local commit which are missing on the remote, then move the
// remote head to this commit.
//
// The remote head must be an ancestor of the pushed commit, otherwise Push fails with
// status.ErrDiverged. Push also fails with status.ErrDiverged when the remote head moves
// during the transfer: objects are then transferred but the remote head is left unchanged.
func (s *Sync) Push(ctx context.Context, r Remote, head hash.Hash, depth int) (res Result, err error) {
	if s.m != nil {
		defer func(t0 time.Time) {
			s.m.Usage.UsedAll(t0, "Push")(err)
		}(time.Now())
	}

	remoteHead, found, err := r.Head(ctx)
	if err != nil {
		return Result{}, err
	}
	if found && remoteHead == head {
		return Result{Head: head}, nil
	}
	if found {
		fastForward, err := s.graph.IsAncestorOf(ctx, remoteHead, head)
		if err != nil {
			return Result{}, err
		}
		if !fastForward {
			return Result{Head: head}, status.ErrDiverged.WrapMessage("remote %v is at %v", r, remoteHead.Short())
		}
	}

	n, err := s.transfer(ctx, local{s.objects}, r, head, depth, "push")
	if err != nil {
		return Result{}, err
	}

	var expected *hash.Hash
	if found {
		expected = &remoteHead
	}
	updated, err := r.CompareAndSet(ctx, expected, head)
	if err != nil {
		return Result{}, err
	}
	if !updated {
		return Result{Head: head, Objects: n}, status.ErrDiverged.WrapMessage("remote %v moved during push", r)
	}

	s.l.Info("pushed", zap.Stringer("remote", r), zap.Stringer("head", head), zap.Int("objects", n))
	return Result{Head: head, Objects: n, Updated: true}, nil
}

// endpoint of a transfer
type endpoint interface {
	String() string
	Has(context.Context, model.KindedKey) (bool, error)
	Get(context.Context, model.KindedKey) ([]byte, error)
	Put(context.Context, model.KindedKey, []byte) error
}

// local object store as a transfer endpoint
type local struct {
	*objects.Store
}

func (l local) Get(ctx context.Context, key model.KindedKey) ([]byte, error) {
	return l.GetRaw(ctx, key)
}

func (l local) Put(ctx context.Context, key model.KindedKey, data []byte) error {
	return l.PutRaw(ctx, key, data)
}
