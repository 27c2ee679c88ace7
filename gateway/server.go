package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"riskpool/native/bank"
	"riskpool/native/cooler"
	"riskpool/native/etoken"
)

// Server exposes the pool's read surfaces over HTTP: ledger state, cooler
// requests and the prometheus metrics endpoint. All routes are read-only;
// state changes go through the host embedding the engines.
type Server struct {
	ledger *etoken.Ledger
	queue  *cooler.Engine
	logger *slog.Logger
}

// NewServer wires a read-only API over the given engines.
func NewServer(ledger *etoken.Ledger, queue *cooler.Engine, logger *slog.Logger) *Server {
	return &Server{ledger: ledger, queue: queue, logger: logger}
}

// Handler builds the HTTP route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1/pool", func(pr chi.Router) {
		pr.Get("/", s.poolStatus)
		pr.Get("/balance/{address}", s.balance)
		pr.Get("/loan/{address}", s.loan)
	})
	r.Route("/v1/requests", func(rr chi.Router) {
		rr.Get("/pending", s.pending)
		rr.Get("/{id}", s.request)
	})
	return r
}

type poolStatusResponse struct {
	Name              string `json:"name"`
	Address           string `json:"address"`
	Scale             string `json:"scale"`
	TotalSupply       string `json:"totalSupply"`
	TotalSCR          string `json:"totalScr"`
	TokenInterestRate string `json:"tokenInterestRate"`
	UtilizationRate   string `json:"utilizationRate"`
	TotalWithdrawable string `json:"totalWithdrawable"`
	FundsAvailable    string `json:"fundsAvailable"`
	InvestedInVault   string `json:"investedInVault"`
}

func (s *Server) poolStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, poolStatusResponse{
		Name:              s.ledger.Name(),
		Address:           s.ledger.Address().Hex(),
		Scale:             s.ledger.GetCurrentScale(false).String(),
		TotalSupply:       s.ledger.TotalSupply().String(),
		TotalSCR:          s.ledger.TotalSCR().String(),
		TokenInterestRate: s.ledger.TokenInterestRate().String(),
		UtilizationRate:   s.ledger.UtilizationRate().String(),
		TotalWithdrawable: s.ledger.TotalWithdrawable().String(),
		FundsAvailable:    s.ledger.FundsAvailable().String(),
		InvestedInVault:   s.ledger.InvestedInYieldVault().String(),
	})
}

type balanceResponse struct {
	Address       string `json:"address"`
	Balance       string `json:"balance"`
	ScaledBalance string `json:"scaledBalance"`
}

func (s *Server) balance(w http.ResponseWriter, r *http.Request) {
	owner, err := bank.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, balanceResponse{
		Address:       owner.Hex(),
		Balance:       s.ledger.BalanceOf(owner).String(),
		ScaledBalance: s.ledger.ScaledBalanceOf(owner).String(),
	})
}

type loanResponse struct {
	Borrower string `json:"borrower"`
	Debt     string `json:"debt"`
}

func (s *Server) loan(w http.ResponseWriter, r *http.Request) {
	borrower, err := bank.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, loanResponse{
		Borrower: borrower.Hex(),
		Debt:     s.ledger.GetLoan(borrower).String(),
	})
}

type requestResponse struct {
	ID               uint64 `json:"id"`
	EToken           string `json:"etoken"`
	Owner            string `json:"owner"`
	Approved         string `json:"approved,omitempty"`
	AmountAtSchedule string `json:"amountAtSchedule"`
	ScaleAtSchedule  string `json:"scaleAtSchedule"`
	UnlockTime       int64  `json:"unlockTime"`
	Executed         bool   `json:"executed"`
	CurrentValue     string `json:"currentValue"`
}

func (s *Server) request(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	req := s.queue.GetRequest(id)
	if req == nil {
		http.NotFound(w, r)
		return
	}
	resp := requestResponse{
		ID:               req.ID,
		EToken:           req.EToken.Hex(),
		Owner:            req.Owner.Hex(),
		AmountAtSchedule: req.AmountAtSchedule.String(),
		ScaleAtSchedule:  req.ScaleAtSchedule.String(),
		UnlockTime:       req.UnlockTime,
		Executed:         req.Executed,
		CurrentValue:     s.queue.GetCurrentValue(id).String(),
	}
	if !req.Approved.IsZero() {
		resp.Approved = req.Approved.Hex()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type pendingResponse struct {
	EToken  string `json:"etoken"`
	Pending string `json:"pending"`
}

func (s *Server) pending(w http.ResponseWriter, _ *http.Request) {
	etk := s.ledger.Address()
	s.writeJSON(w, http.StatusOK, pendingResponse{
		EToken:  etk.Hex(),
		Pending: s.queue.PendingWithdrawals(etk).String(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && s.logger != nil {
		s.logger.Error("encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
