package httpd

import (
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"
	"github.com/oneconcern/irmin/pkg/core"
	"github.com/oneconcern/irmin/pkg/core/status"
	"github.com/oneconcern/irmin/pkg/errors"
	"github.com/oneconcern/irmin/pkg/hash"
	"github.com/oneconcern/irmin/pkg/model"
	"github.com/oneconcern/irmin/pkg/remote"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const realm = "irmin"

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		if s.cfg.User != "" {
			r.Use(middleware.BasicAuth(realm, map[string]string{s.cfg.User: s.cfg.Password}))
		}
		r.Use(s.limitBody)

		r.Get("/branches", s.listBranches)
		r.Get("/heads/*", s.getHead)
		r.Post("/heads/*", s.compareAndSet)
		r.Head("/objects/{kind}/{hash}", s.hasObject)
		r.Get("/objects/{kind}/{hash}", s.getObject)
		r.Put("/objects/{kind}/{hash}", s.putObject)
	})
	return r
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if _, err := s.repo.Branches(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "ok\n")
}

func (s *Server) listBranches(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	names, err := s.repo.Branches(ctx)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	heads := make([]remote.Head, 0, len(names))
	for _, name := range names {
		head, found, err := s.repo.BranchTable().Get(ctx, name)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if !found {
			// removed while listing
			continue
		}
		heads = append(heads, remote.Head{Branch: name, Head: head})
	}
	s.reply(w, r, http.StatusOK, heads)
}

func (s *Server) getHead(w http.ResponseWriter, r *http.Request) {
	store, err := s.store(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	head, found, err := store.Head(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !found {
		http.Error(w, "branch has no head", http.StatusNotFound)
		return
	}
	s.reply(w, r, http.StatusOK, remote.Head{Branch: store.Branch(), Head: head.Hash()})
}

func (s *Server) compareAndSet(w http.ResponseWriter, r *http.Request) {
	store, err := s.store(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var req remote.CompareAndSet
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}

	updated, err := core.StoreRemote(store).CompareAndSet(r.Context(), req.Expected, req.Next)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if updated {
		s.l.Info("remote moved branch head",
			zap.String("branch", store.Branch()),
			zap.Stringer("head", req.Next),
			zap.String("request-id", RequestID(r.Context())),
		)
	}
	s.reply(w, r, http.StatusOK, remote.CompareAndSetResult{Updated: updated})
}

func (s *Server) hasObject(w http.ResponseWriter, r *http.Request) {
	key, err := objectKey(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	found, err := s.repo.Objects().Has(r.Context(), key)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !found {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) getObject(w http.ResponseWriter, r *http.Request) {
	key, err := objectKey(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	data, err := s.repo.Objects().GetRaw(r.Context(), key)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/cbor")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) putObject(w http.ResponseWriter, r *http.Request) {
	key, err := objectKey(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "object too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.repo.Objects().PutRaw(r.Context(), key, data); err != nil {
		s.fail(w, r, err)
		return
	}
	s.m.objects.WithLabelValues(key.Kind.String()).Inc()
	w.WriteHeader(http.StatusNoContent)
}

// store bound to the branch named by the wildcard of the route
func (s *Server) store(r *http.Request) (*core.Store, error) {
	name, err := url.PathUnescape(chi.URLParam(r, "*"))
	if err != nil {
		return nil, status.ErrInvalidBranch.WrapMessage("%q: %v", chi.URLParam(r, "*"), err)
	}
	return s.repo.OfBranch(r.Context(), name)
}

func objectKey(r *http.Request) (model.KindedKey, error) {
	kind, err := model.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		return model.KindedKey{}, err
	}
	h, err := hash.Parse(chi.URLParam(r, "hash"))
	if err != nil {
		return model.KindedKey{}, status.ErrInvalidHash.Wrap(err)
	}
	return model.KindedKey{Kind: kind, Hash: h}, nil
}

func (s *Server) reply(w http.ResponseWriter, r *http.Request, code int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(data)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusCode(err)
	if code >= http.StatusInternalServerError {
		s.l.Error("serving request", zap.Error(err), zap.String("request-id", RequestID(r.Context())))
	}
	http.Error(w, err.Error(), code)
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, status.ErrNotFound), errors.Is(err, status.ErrBranchNotFound):
		return http.StatusNotFound
	case errors.Is(err, status.ErrInvalidBranch),
		errors.Is(err, status.ErrInvalidHash),
		errors.Is(err, status.ErrCorruptObject):
		return http.StatusBadRequest
	case errors.Is(err, status.ErrImmutableView), errors.Is(err, status.ErrPreconditionFailed):
		return http.StatusConflict
	case errors.Is(err, status.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
