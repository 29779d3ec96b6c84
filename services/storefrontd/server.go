package storefrontd

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"storefront/crypto"
	"storefront/crypto/merkle"
	"storefront/native/collectible"
	"storefront/native/storefront"
	"storefront/observability/logging"
	"storefront/observability/metrics"
)

var errBadRequest = errors.New("BAD_REQUEST")

// ServerConfig bundles the dependencies of the HTTP API.
type ServerConfig struct {
	Node        *Node
	Auth        *Authenticator
	Idempotency *IdempotencyStore
	Limiter     *RateLimiter
	Indexer     *Indexer
	Metrics     *metrics.StorefrontMetrics
	Gatherer    prometheus.Gatherer
	Logger      *slog.Logger
}

// Server exposes the engine over HTTP.
type Server struct {
	node    *Node
	auth    *Authenticator
	idem    *IdempotencyStore
	limiter *RateLimiter
	indexer *Indexer
	metrics *metrics.StorefrontMetrics
	log     *slog.Logger
	now     func() time.Time
	router  http.Handler
}

// NewServer builds the router.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Node == nil || cfg.Auth == nil {
		return nil, errors.New("node and authenticator required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		reg := prometheus.NewRegistry()
		cfg.Metrics = metrics.NewStorefrontMetrics(reg)
		if cfg.Gatherer == nil {
			cfg.Gatherer = reg
		}
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		node:    cfg.Node,
		auth:    cfg.Auth,
		idem:    cfg.Idempotency,
		limiter: cfg.Limiter,
		indexer: cfg.Indexer,
		metrics: cfg.Metrics,
		log:     cfg.Logger,
		now:     time.Now,
	}
	if s.limiter != nil && s.metrics != nil {
		s.limiter.onDeny = s.metrics.RecordThrottle
	}
	s.router = s.buildRouter(cfg.Gatherer)
	return s, nil
}

// Handler exposes the traced router.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "storefrontd")
}

func (s *Server) buildRouter(gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(s.auth.Middleware)
	r.Use(s.observe)

	r.Get("/healthz", s.health)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	guarded := func(h http.HandlerFunc) http.Handler {
		var out http.Handler = h
		if s.idem != nil {
			out = s.idem.WithIdempotency(out)
		}
		if s.limiter != nil {
			out = s.limiter.Middleware(out)
		}
		return out
	}

	r.Route("/v1", func(api chi.Router) {
		api.Get("/tiers", s.listTiers)
		api.Post("/tiers", s.initTier)
		api.Get("/tiers/{tier}", s.getTier)
		api.Put("/tiers/{tier}", s.updateTier)

		api.Get("/tiers/{tier}/sale", s.getSale)
		api.Post("/tiers/{tier}/sale", s.configureSale(false))
		api.Put("/tiers/{tier}/sale", s.configureSale(true))
		api.Post("/tiers/{tier}/sale/stop", s.stopSale)

		api.Get("/tiers/{tier}/presale", s.getPresale)
		api.Post("/tiers/{tier}/presale", s.configurePresale(false))
		api.Put("/tiers/{tier}/presale", s.configurePresale(true))
		api.Post("/tiers/{tier}/presale/stop", s.stopPresale)

		api.Get("/tiers/{tier}/phases/{phase}", s.getPhase)
		api.Post("/tiers/{tier}/phases/{phase}", s.initPhase)
		api.Post("/tiers/{tier}/phases/{phase}/stop", s.stopPhase)
		api.Method(http.MethodPost, "/tiers/{tier}/phases/{phase}/mint", guarded(s.mintPhase))

		api.Get("/tiers/{tier}/tokens/{index}", s.tierTokenByIndex)
		api.Get("/accounts/{account}/tiers/{tier}/tokens", s.accountTierTokens)
		api.Get("/accounts/{account}/tiers/{tier}/tokens/{index}", s.accountTierTokenByIndex)
		api.Post("/tokens/{id}/transfer", s.transferToken)

		api.Get("/promos/{code}", s.getPromo)
		api.Put("/promos/{code}", s.updatePromo)

		api.Method(http.MethodPost, "/mint", guarded(s.mint))
		api.Method(http.MethodPost, "/presale/mint", guarded(s.presaleMint))
		api.Method(http.MethodPost, "/bulk-mint", guarded(s.bulkMint))

		api.Get("/revenue", s.getRevenue)
		api.Method(http.MethodPost, "/revenue/withdraw", guarded(s.withdraw))
		api.Method(http.MethodPost, "/revenue/influencers/{referrer}/withdraw", guarded(s.withdrawInfluencer))
		api.Put("/treasury", s.setTreasury)
		api.Put("/pause", s.setPause)

		api.Get("/history/mints", s.mintHistory)
		api.Get("/history/withdrawals", s.withdrawalHistory)
	})
	return r
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.ObserveRequest(route, status, s.now().Sub(start))
		attrs := []any{
			slog.String("route", route),
			slog.Int("status", status),
			slog.String("requestid", chimw.GetReqID(r.Context())),
		}
		if caller, err := currentCaller(r.Context()); err == nil {
			attrs = append(attrs, logging.MaskField("caller", crypto.FormatAccount(caller)))
		}
		s.log.Info("request", attrs...)
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- errors ---

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, errMissingToken):
		return http.StatusUnauthorized
	case errors.Is(err, collectible.ErrTokenNotFound):
		return http.StatusNotFound
	case errors.Is(err, collectible.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, collectible.ErrTransferLocked):
		return http.StatusConflict
	case errors.Is(err, collectible.ErrZeroRecipient):
		return http.StatusBadRequest
	}
	switch storefront.CategoryOf(err) {
	case storefront.CategoryConfiguration:
		return http.StatusBadRequest
	case storefront.CategoryEligibility:
		return http.StatusForbidden
	case storefront.CategoryCapacity:
		return http.StatusConflict
	case storefront.CategoryPayment:
		return http.StatusPaymentRequired
	case storefront.CategoryAuthorization:
		if errors.Is(err, storefront.ErrUnauthorized) {
			return http.StatusForbidden
		}
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, errBadRequest):
		return errBadRequest.Error()
	case errors.Is(err, errMissingToken):
		return "UNAUTHENTICATED"
	case errors.Is(err, collectible.ErrTokenNotFound):
		return "TOKEN_NOT_FOUND"
	case errors.Is(err, collectible.ErrNotOwner):
		return "NOT_OWNER"
	case errors.Is(err, collectible.ErrTransferLocked):
		return "TRANSFER_LOCKED"
	case errors.Is(err, collectible.ErrZeroRecipient):
		return "INVALID_ACCOUNT"
	}
	return storefront.Reason(err)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	reason := reasonFor(err)
	if status >= 500 {
		s.log.Error("request failed", slog.String("route", r.URL.Path), slog.Any("error", err))
	}
	s.metrics.RecordRejection(reason)
	writeJSON(w, status, errorResponse{Error: reason})
}

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// --- parsing ---

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("decode body: %v", err)
	}
	return nil
}

func uintParam(r *http.Request, name string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(chi.URLParam(r, name), 10, bits)
	if err != nil {
		return 0, badRequest("invalid %s", name)
	}
	return v, nil
}

func tierParam(r *http.Request) (uint64, error) { return uintParam(r, "tier", 64) }

func phaseParam(r *http.Request) (uint8, error) {
	v, err := uintParam(r, "phase", 8)
	return uint8(v), err
}

func accountParam(raw string) ([20]byte, error) {
	acct, err := crypto.ParseAccount(raw)
	if err != nil {
		return [20]byte{}, badRequest("%v", err)
	}
	return acct, nil
}

func amountParam(raw string) (*big.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok || v.Sign() < 0 {
		return nil, badRequest("invalid amount %q", raw)
	}
	return v, nil
}

func rootParam(raw string) ([32]byte, error) {
	if strings.TrimSpace(raw) == "" {
		return [32]byte{}, nil
	}
	nodes, err := merkle.ParseProof([]string{raw})
	if err != nil {
		return [32]byte{}, badRequest("invalid root: %v", err)
	}
	return nodes[0], nil
}

func proofParam(raw []string) ([]merkle.Hash, error) {
	proof, err := merkle.ParseProof(raw)
	if err != nil {
		return nil, badRequest("%v", err)
	}
	return proof, nil
}

// --- tiers ---

type tierRequest struct {
	ID           uint64 `json:"id"`
	Price        string `json:"price"`
	MaxSupply    uint64 `json:"maxSupply"`
	MaxPerTx     uint64 `json:"maxPerTx"`
	MaxPerWallet uint64 `json:"maxPerWallet"`
}

func (req tierRequest) params() (storefront.TierParams, error) {
	price, err := amountParam(req.Price)
	if err != nil {
		return storefront.TierParams{}, err
	}
	if price == nil {
		price = big.NewInt(0)
	}
	return storefront.TierParams{
		ID:           req.ID,
		Price:        price,
		MaxSupply:    req.MaxSupply,
		MaxPerTx:     req.MaxPerTx,
		MaxPerWallet: req.MaxPerWallet,
	}, nil
}

func (s *Server) listTiers(w http.ResponseWriter, r *http.Request) {
	var out []tierView
	err := s.node.View(func(e *storefront.Engine) error {
		tiers, err := e.Tiers()
		if err != nil {
			return err
		}
		out = make([]tierView, len(tiers))
		for i, t := range tiers {
			out[i] = newTierView(t)
		}
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getTier(w http.ResponseWriter, r *http.Request) {
	id, err := tierParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var tier *storefront.Tier
	if err := s.node.View(func(e *storefront.Engine) (err error) {
		tier, err = e.TierInfo(id)
		return err
	}); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTierView(tier))
}

func (s *Server) initTier(w http.ResponseWriter, r *http.Request) {
	s.writeTier(w, r, false)
}

func (s *Server) updateTier(w http.ResponseWriter, r *http.Request) {
	s.writeTier(w, r, true)
}

func (s *Server) writeTier(w http.ResponseWriter, r *http.Request, update bool) {
	caller, err := currentCaller(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req tierRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if update {
		if req.ID, err = tierParam(r); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	params, err := req.params()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var tier *storefront.Tier
	err = s.node.Update(func(e *storefront.Engine) (err error) {
		if update {
			tier, err = e.UpdateTier(caller, params)
		} else {
			tier, err = e.InitTier(caller, params)
		}
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	status := http.StatusCreated
	if update {
		status = http.StatusOK
	}
	writeJSON(w, status, newTierView(tier))
}

// --- sale, presale and numbered phases ---

type windowRequest struct {
	Start     uint64 `json:"start"`
	End       uint64 `json:"end"`
	MaxSupply uint64 `json:"maxSupply"`
	Root      string `json:"root,omitempty"`
}

func (s *Server) getSale(w http.ResponseWriter, r *http.Request) {
	s.getView(w, r, func(e *storefront.Engine, tier uint64) (*storefront.PhaseView, error) {
		return e.SaleInfo(tier)
	})
}

func (s *Server) getPresale(w http.ResponseWriter, r *http.Request) {
	s.getView(w, r, func(e *storefront.Engine, tier uint64) (*storefront.PhaseView, error) {
		return e.PresaleInfo(tier)
	})
}

func (s *Server) getPhase(w http.ResponseWriter, r *http.Request) {
	id, err := phaseParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.getView(w, r, func(e *storefront.Engine, tier uint64) (*storefront.PhaseView, error) {
		return e.PhaseInfo(tier, id)
	})
}

func (s *Server) getView(w http.ResponseWriter, r *http.Request, load func(*storefront.Engine, uint64) (*storefront.PhaseView, error)) {
	tier, err := tierParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var view *storefront.PhaseView
	if err := s.node.View(func(e *storefront.Engine) (err error) {
		view, err = load(e, tier)
		return err
	}); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPhaseView(view))
}

func (s *Server) configureSale(update bool) http.HandlerFunc {
	return s.configureWindow(func(e *storefront.Engine, caller [20]byte, tier uint64, req windowRequest, _ [32]byte) (*storefront.PhaseView, error) {
		var err error
		if update {
			_, err = e.UpdateSale(caller, tier, req.Start, req.End, req.MaxSupply)
		} else {
			_, err = e.StartSale(caller, tier, req.Start, req.End, req.MaxSupply)
		}
		if err != nil {
			return nil, err
		}
		return e.SaleInfo(tier)
	})
}

func (s *Server) configurePresale(update bool) http.HandlerFunc {
	return s.configureWindow(func(e *storefront.Engine, caller [20]byte, tier uint64, req windowRequest, root [32]byte) (*storefront.PhaseView, error) {
		var err error
		if update {
			_, err = e.UpdatePresale(caller, tier, req.Start, req.End, req.MaxSupply, root)
		} else {
			_, err = e.StartPresale(caller, tier, req.Start, req.End, req.MaxSupply, root)
		}
		if err != nil {
			return nil, err
		}
		return e.PresaleInfo(tier)
	})
}

type windowFunc func(e *storefront.Engine, caller [20]byte, tier uint64, req windowRequest, root [32]byte) (*storefront.PhaseView, error)

func (s *Server) configureWindow(apply windowFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := currentCaller(r.Context())
		if err != nil {
			s.fail(w, r, err)
			return
		}
		tier, err := tierParam(r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		var req windowRequest
		if err := decode(r, &req); err != nil {
			s.fail(w, r, err)
			return
		}
		root, err := rootParam(req.Root)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		var view phaseView
		err = s.node.Update(func(e *storefront.Engine) error {
			pv, err := apply(e, caller, tier, req, root)
			if err != nil {
				return err
			}
			view = newPhaseView(pv)
			return nil
		})
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func (s *Server) stopSale(w http.ResponseWriter, r *http.Request) {
	s.stopWith(w, r, func(e *storefront.Engine, caller [20]byte, tier uint64) error {
		return e.StopSale(caller, tier)
	})
}

func (s *Server) stopPresale(w http.ResponseWriter, r *http.Request) {
	s.stopWith(w, r, func(e *storefront.Engine, caller [20]byte, tier uint64) error {
		return e.StopPresale(caller, tier)
	})
}

func (s *Server) stopPhase(w http.ResponseWriter, r *http.Request) {
	id, err := phaseParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.stopWith(w, r, func(e *storefront.Engine, caller [20]byte, tier uint64) error {
		return e.StopPhase(caller, tier, id)
	})
}

func (s *Server) stopWith(w http.ResponseWriter, r *http.Request, stop func(*storefront.Engine, [20]byte, uint64) error) {
	caller, err := currentCaller(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	tier, err := tierParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.node.Update(func(e *storefront.Engine) error { return stop(e, caller, tier) }); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type phaseRequest struct {
	Kind         string   `json:"kind"`
	Start        uint64   `json:"start"`
	End          uint64   `json:"end"`
	MaxSupply    uint64   `json:"maxSupply"`
	MaxPerWallet uint64   `json:"maxPerWallet"`
	MaxPerTx     uint64   `json:"maxPerTx"`
	Root         string   `json:"root,omitempty"`
	Accounts     []string `json:"accounts,omitempty"`
	Quotas       []uint64 `json:"quotas,omitempty"`
	Weights      []uint64 `json:"weights,omitempty"`
}

func (req phaseRequest) config() (storefront.PhaseConfig, error) {
	kind, ok := storefront.ParsePhaseKind(req.Kind)
	if !ok {
		return storefront.PhaseConfig{}, badRequest("unknown phase kind %q", req.Kind)
	}
	root, err := rootParam(req.Root)
	if err != nil {
		return storefront.PhaseConfig{}, err
	}
	cfg := storefront.PhaseConfig{
		Kind:         kind,
		Start:        req.Start,
		End:          req.End,
		MaxSupply:    req.MaxSupply,
		MaxPerWallet: req.MaxPerWallet,
		MaxPerTx:     req.MaxPerTx,
		Root:         root,
		Quotas:       req.Quotas,
		Weights:      req.Weights,
	}
	for _, raw := range req.Accounts {
		acct, err := accountParam(raw)
		if err != nil {
			return storefront.PhaseConfig{}, err
		}
		cfg.Accounts = append(cfg.Accounts, acct)
	}
	return cfg, nil
}

func (s *Server) initPhase(w http.ResponseWriter, r *http.Request) {
	caller, err := currentCaller(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	tier, err := tierParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	id, err := phaseParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req phaseRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	cfg, err := req.config()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var view phaseView
	err = s.node.Update(func(e *storefront.Engine) error {
		if _, err := e.InitPhase(caller, tier, id, cfg); err != nil {
			return err
		}
		pv, err := e.PhaseInfo(tier, id)
		if err != nil {
			return err
		}
		view = newPhaseView(pv)
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// --- promo codes ---

type promoRequest struct {
	Tier          uint64 `json:"tier"`
	Referrer      string `json:"referrer,omitempty"`
	DiscountPct   uint64 `json:"discountPct"`
	CommissionPct uint64 `json:"commissionPct"`
	MaxPerWallet  uint64 `json:"maxPerWallet"`
	Active        bool   `json:"active"`
}

func (s *Server) getPromo(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	var (
		promo *storefront.PromoCode
		found bool
	)
	if err := s.node.View(func(e *storefront.Engine) (err error) {
		promo, found, err = e.PromoCodeInfo(code)
		return err
	}); err != nil {
		s.fail(w, r, err)
		return
	}
	if !found {
		s.fail(w, r, storefront.ErrPromoNotActive)
		return
	}
	writeJSON(w, http.StatusOK, newPromoView(promo))
}

func (s *Server) updatePromo(w http.ResponseWriter, r *http.Request) {
	caller, err := currentCaller(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req promoRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	var referrer [20]byte
	if strings.TrimSpace(req.Referrer) != "" {
		if referrer, err = accountParam(req.Referrer); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	params := storefront.PromoParams{
		Code:          chi.URLParam(r, "code"),
		Tier:          req.Tier,
		Referrer:      referrer,
		DiscountPct:   req.DiscountPct,
		CommissionPct: req.CommissionPct,
		MaxPerWallet:  req.MaxPerWallet,
		Active:        req.Active,
	}
	var promo *storefront.PromoCode
	if err := s.node.Update(func(e *storefront.Engine) (err error) {
		promo, err = e.UpdatePromoCode(caller, params)
		return err
	}); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPromoView(promo))
}

// --- minting ---

type mintRequest struct {
	Tiers      []uint64   `json:"tiers"`
	Quantities []uint64   `json:"quantities"`
	Proofs     [][]string `json:"proofs,omitempty"`
	Payment    string     `json:"payment,omitempty"`
}

type phaseMintRequest struct {
	Quantity  uint64   `json:"quantity"`
	Proof     []string `json:"proof,omitempty"`
	Allowance uint64   `json:"allowance,omitempty"`
	PromoCode string   `json:"promoCode,omitempty"`
	Payment   string   `json:"payment,omitempty"`
}

type bulkMintRequest struct {
	Recipients []string `json:"recipients"`
	Tiers      []uint64 `json:"tiers"`
	Quantities []uint64 `json:"quantities"`
}

func (s *Server) runMint(w http.ResponseWriter, r *http.Request, call func(*storefront.Engine) (*storefront.MintReceipt, error)) {
	var receipt *storefront.MintReceipt
	if err := s.node.Update(func(e *storefront.Engine) (err error) {
		receipt, err = call(e)
		return err
	}); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newReceiptView(uuid.NewString(), receipt))
}

func (s *Server) mint(w http.ResponseWriter, r *http.Request) {
	caller, err := currentCaller(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req mintRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	payment, err := amountParam(req.Payment)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.runMint(w, r, func(e *storefront.Engine) (*storefront.MintReceipt, error) {
		return e.Mint(caller, req.Tiers, req.Quantities, payment)
	})
}

func (s *Server) presaleMint(w http.ResponseWriter, r *http.Request) {
	caller, err := currentCaller(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req mintRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	payment, err := amountParam(req.Payment)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	proofs := make([][]merkle.Hash, len(req.Proofs))
	for i, raw := range req.Proofs {
		if proofs[i], err = proofParam(raw); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	s.runMint(w, r, func(e *storefront.Engine) (*storefront.MintReceipt, error) {
		return e.PresaleMint(caller, req.Tiers, req.Quantities, proofs, payment)
	})
}

func (s *Server) mintPhase(w http.ResponseWriter, r *http.Request) {
	caller, err := currentCaller(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	tier, err := tierParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	id, err := phaseParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req phaseMintRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	payment, err := amountParam(req.Payment)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	proof, err := proofParam(req.Proof)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	opts := storefront.MintOptions{Proof: proof, Allowance: req.Allowance, PromoCode: req.PromoCode}
	s.runMint(w, r, func(e *storefront.Engine) (*storefront.MintReceipt, error) {
		return e.MintPhase(caller, tier, id, req.Quantity, opts, payment)
	})
}

func (s *Server) bulkMint(w http.ResponseWriter, r *http.Request) {
	caller, err := currentCaller(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req bulkMintRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	recipients := make([][20]byte, len(req.Recipients))
	for i, raw := range req.Recipients {
		if recipients[i], err = accountParam(raw); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	s.runMint(w, r, func(e *storefront.Engine) (*storefront.MintReceipt, error) {
		return e.BulkMint(caller, recipients, req.Tiers, req.Quantities)
	})
}

// --- enumeration ---

func (s *Server) tierTokenByIndex(w http.ResponseWriter, r *http.Request) {
	tier, err := tierParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	index, err := uintParam(r, "index", 64)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var id uint64
	if err := s.node.View(func(e *storefront.Engine) (err error) {
		id, err = e.TierTokenByIndex(tier, index)
		return err
	}); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"tokenId": id})
}

func (s *Server) accountTierTokens(w http.ResponseWriter, r *http.Request) {
	owner, err := accountParam(chi.URLParam(r, "account"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	tier, err := tierParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ids := []uint64{}
	if err := s.node.View(func(e *storefront.Engine) error {
		n, err := e.BalanceOfTier(owner, tier)
		if err != nil {
			return err
		}
		for i := uint64(0); i < n; i++ {
			id, err := e.TierTokenOfOwnerByIndex(owner, tier, i)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	}); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"balance": len(ids), "tokenIds": ids})
}

func (s *Server) accountTierTokenByIndex(w http.ResponseWriter, r *http.Request) {
	owner, err := accountParam(chi.URLParam(r, "account"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	tier, err := tierParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	index, err := uintParam(r, "index", 64)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var id uint64
	if err := s.node.View(func(e *storefront.Engine) (err error) {
		id, err = e.TierTokenOfOwnerByIndex(owner, tier, index)
		return err
	}); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"tokenId": id})
}

func (s *Server) transferToken(w http.ResponseWriter, r *http.Request) {
	caller, err := currentCaller(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	id, err := uintParam(r, "id", 64)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req struct {
		To string `json:"to"`
	}
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	to, err := accountParam(req.To)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.node.TransferToken(caller, to, id, uint64(s.now().Unix())); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- revenue ---

func (s *Server) getRevenue(w http.ResponseWriter, r *http.Request) {
	var view revenueView
	err := s.node.View(func(e *storefront.Engine) error {
		rev, err := e.RevenueInfo()
		if err != nil {
			return err
		}
		treasury, err := e.Treasury()
		if err != nil {
			return err
		}
		refs, err := e.Influencers()
		if err != nil {
			return err
		}
		view = revenueView{
			Asset:               e.Asset(),
			Treasury:            crypto.FormatAccount(treasury),
			TotalCollected:      amountString(rev.TotalCollected),
			TreasuryAccrued:     amountString(rev.TreasuryAccrued),
			TreasuryWithdrawn:   amountString(rev.TreasuryWithdrawn),
			TreasuryBalance:     amountString(rev.TreasuryBalance()),
			CommissionAccrued:   amountString(rev.CommissionAccrued),
			CommissionWithdrawn: amountString(rev.CommissionWithdrawn),
			CommissionBalance:   amountString(rev.CommissionBalance()),
			Influencers:         make([]referralView, len(refs)),
		}
		for i, ref := range refs {
			view.Influencers[i] = newReferralView(ref)
		}
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
	caller, err := currentCaller(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var (
		amount *big.Int
		to     [20]byte
	)
	if err := s.node.Update(func(e *storefront.Engine) (err error) {
		if amount, err = e.Withdraw(caller); err != nil {
			return err
		}
		to, err = e.Treasury()
		return err
	}); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, withdrawalView{ReceiptID: uuid.NewString(), To: crypto.FormatAccount(to), Amount: amount.String()})
}

func (s *Server) withdrawInfluencer(w http.ResponseWriter, r *http.Request) {
	caller, err := currentCaller(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	referrer, err := accountParam(chi.URLParam(r, "referrer"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var amount *big.Int
	if err := s.node.Update(func(e *storefront.Engine) (err error) {
		amount, err = e.WithdrawInfluencerRevenue(caller, referrer)
		return err
	}); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, withdrawalView{ReceiptID: uuid.NewString(), To: crypto.FormatAccount(referrer), Amount: amount.String()})
}

func (s *Server) setTreasury(w http.ResponseWriter, r *http.Request) {
	caller, err := currentCaller(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req struct {
		Treasury string `json:"treasury"`
	}
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	addr, err := accountParam(req.Treasury)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.node.Update(func(e *storefront.Engine) error { return e.SetTreasury(caller, addr) }); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setPause(w http.ResponseWriter, r *http.Request) {
	caller, err := currentCaller(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req struct {
		Paused bool `json:"paused"`
	}
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.node.Update(func(e *storefront.Engine) error { return e.SetPaused(caller, req.Paused) }); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- history ---

func (s *Server) mintHistory(w http.ResponseWriter, r *http.Request) {
	if s.indexer == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "INDEXER_DISABLED"})
		return
	}
	q := r.URL.Query()
	filter := MintFilter{}
	if raw := q.Get("account"); raw != "" {
		acct, err := accountParam(raw)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		filter.Account = strings.ToLower(crypto.FormatAccount(acct))
	}
	if raw := q.Get("tier"); raw != "" {
		tier, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			s.fail(w, r, badRequest("invalid tier"))
			return
		}
		filter.Tier = tier
	}
	if raw := q.Get("limit"); raw != "" {
		filter.Limit, _ = strconv.Atoi(raw)
	}
	records, err := s.indexer.Mints(filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) withdrawalHistory(w http.ResponseWriter, r *http.Request) {
	if s.indexer == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "INDEXER_DISABLED"})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := s.indexer.Withdrawals(limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}
