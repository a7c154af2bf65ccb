package handlers

import (
	"math/big"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/railmeter/railmeter/internal/domain"
	"github.com/railmeter/railmeter/internal/epoch"
	"github.com/railmeter/railmeter/internal/httpserver/deps"
)

type depositRequest struct {
	Token   string `json:"token"`
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

// Deposit credits base token units to a ledger account. Owner route.
func Deposit(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req depositRequest
		if err := decode(r, &req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		amount, ok := new(big.Int).SetString(req.Amount, 10)
		if !ok {
			http.Error(w, "invalid amount", http.StatusBadRequest)
			return
		}

		if err := d.Payments.Deposit(req.Token, domain.Address(req.Account), amount); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deposited"})
	}
}

type usagePaymentRequest struct {
	Provider string `json:"provider"`
	Amount   string `json:"amount"`
	Reason   string `json:"reason"`
}

type usagePaymentResponse struct {
	Ref      string `json:"ref"`
	Amount   string `json:"amount"`
	Fee      string `json:"fee"`
	NetPayee string `json:"net_payee"`
}

// SendUsagePayment pays a provider a one-time amount on top of the
// subscription. Owner route.
func SendUsagePayment(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req usagePaymentRequest
		if err := decode(r, &req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		amount, ok := new(big.Int).SetString(req.Amount, 10)
		if !ok {
			http.Error(w, "invalid amount", http.StatusBadRequest)
			return
		}

		res, err := d.Manager.SendUsagePayment(r.Context(), d.Owner, domain.Address(req.Provider), amount, req.Reason)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, usagePaymentResponse{
			Ref:      res.Ref,
			Amount:   res.Amount.String(),
			Fee:      res.Fee.String(),
			NetPayee: res.NetPayee.String(),
		})
	}
}

type settleRequest struct {
	UpTo uint64 `json:"up_to"`
}

type settleResponse struct {
	Ref         string `json:"ref"`
	Amount      string `json:"amount"`
	Fee         string `json:"fee"`
	NetPayee    string `json:"net_payee"`
	SettledUpTo uint64 `json:"settled_up_to"`
	Note        string `json:"note,omitempty"`
}

// SettleRail settles a rail through the requested epoch; the uptime arbiter
// adjudicates the amount. Owner route.
func SettleRail(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		railID, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid rail id", http.StatusBadRequest)
			return
		}
		var req settleRequest
		if err := decode(r, &req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		res, err := d.Payments.SettleRail(railID, epoch.Epoch(req.UpTo))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, settleResponse{
			Ref:         res.Ref,
			Amount:      res.Amount.String(),
			Fee:         res.Fee.String(),
			NetPayee:    res.NetPayee.String(),
			SettledUpTo: uint64(res.SettledUpTo),
			Note:        res.Note,
		})
	}
}

type railResponse struct {
	ID            uint64 `json:"id"`
	Token         string `json:"token"`
	From          string `json:"from"`
	To            string `json:"to"`
	Operator      string `json:"operator"`
	Rate          string `json:"rate"`
	LockupPeriod  uint64 `json:"lockup_period"`
	LockupFixed   string `json:"lockup_fixed"`
	CommissionBps uint64 `json:"commission_bps"`
	LastSettled   uint64 `json:"last_settled"`
}

// GetRail returns a rail's current terms and settlement position.
func GetRail(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		railID, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid rail id", http.StatusBadRequest)
			return
		}

		rail, err := d.Payments.GetRail(railID)
		if err != nil {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, railResponse{
			ID:            rail.ID,
			Token:         rail.Token,
			From:          string(rail.From),
			To:            string(rail.To),
			Operator:      string(rail.Operator),
			Rate:          rail.Rate.String(),
			LockupPeriod:  uint64(rail.LockupPeriod),
			LockupFixed:   rail.LockupFixed.String(),
			CommissionBps: rail.CommissionBps,
			LastSettled:   uint64(rail.LastSettled),
		})
	}
}

type accountResponse struct {
	Funds         string `json:"funds"`
	LockupCurrent string `json:"lockup_current"`
	Available     string `json:"available"`
}

// GetAccount returns a ledger account balance.
func GetAccount(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		owner := r.URL.Query().Get("account")
		if token == "" || owner == "" {
			http.Error(w, "token and account are required", http.StatusBadRequest)
			return
		}

		acct := d.Payments.GetAccount(token, domain.Address(owner))
		writeJSON(w, http.StatusOK, accountResponse{
			Funds:         acct.Funds.String(),
			LockupCurrent: acct.LockupCurrent.String(),
			Available:     acct.Available().String(),
		})
	}
}
