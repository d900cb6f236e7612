package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cope-referral-system/internal/scheduler"
	"cope-referral-system/internal/service"
	"cope-referral-system/pkg/errors"
)

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// writeServiceError 冲突类错误返回409拒绝结果，其余按内部错误处理
func writeServiceError(w http.ResponseWriter, err error) {
	if errors.IsConflict(err) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

type UserHandler struct {
	referralSvc *service.ReferralService
}

func NewUserHandler(referralSvc *service.ReferralService) *UserHandler {
	return &UserHandler{referralSvc: referralSvc}
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		IdentityID  string `json:"identity_id"`
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.IdentityID == "" {
		writeError(w, http.StatusBadRequest, "identity_id is required")
		return
	}

	if err := h.referralSvc.RegisterUser(r.Context(), req.IdentityID, req.DisplayName); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "registered"})
}

type WalletHandler struct {
	referralSvc *service.ReferralService
}

func NewWalletHandler(referralSvc *service.ReferralService) *WalletHandler {
	return &WalletHandler{referralSvc: referralSvc}
}

func (h *WalletHandler) VerificationMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	identityID := r.URL.Query().Get("identity_id")
	if identityID == "" {
		writeError(w, http.StatusBadRequest, "identity_id is required")
		return
	}

	message, nonce := service.GenerateVerificationMessage(identityID)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": message,
		"nonce":   nonce,
	})
}

func (h *WalletHandler) Bind(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		IdentityID    string `json:"identity_id"`
		WalletAddress string `json:"wallet_address"`
		Signature     string `json:"signature"`
		Message       string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.IdentityID == "" || req.WalletAddress == "" {
		writeError(w, http.StatusBadRequest, "identity_id and wallet_address are required")
		return
	}

	if req.Signature != "" {
		if !service.VerifySignature(req.Message, req.Signature, req.WalletAddress) {
			writeError(w, http.StatusBadRequest, "signature verification failed")
			return
		}
	}

	if err := h.referralSvc.BindWallet(r.Context(), req.IdentityID, req.WalletAddress, req.Signature, req.Message); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "bound",
		"wallet": strings.ToLower(req.WalletAddress),
	})
}

type ReferralHandler struct {
	referralSvc *service.ReferralService
}

func NewReferralHandler(referralSvc *service.ReferralService) *ReferralHandler {
	return &ReferralHandler{referralSvc: referralSvc}
}

func (h *ReferralHandler) GetCode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(pathParts) < 4 {
		writeError(w, http.StatusBadRequest, "invalid path format, expected /api/referral/code/{wallet}")
		return
	}
	wallet := pathParts[3]

	code, err := h.referralSvc.CreateOrGetReferralCode(r.Context(), wallet)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"wallet": strings.ToLower(wallet),
		"code":   code,
	})
}

func (h *ReferralHandler) ResolveCode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(pathParts) < 4 {
		writeError(w, http.StatusBadRequest, "invalid path format, expected /api/referral/resolve/{code}")
		return
	}
	code := pathParts[3]

	wallet, err := h.referralSvc.ResolveCode(r.Context(), code)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if wallet == "" {
		writeError(w, http.StatusNotFound, "referral code not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"code":            code,
		"referrer_wallet": wallet,
	})
}

func (h *ReferralHandler) Bind(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		ReferredWallet string `json:"referred_wallet"`
		ReferrerWallet string `json:"referrer_wallet"`
		ReferralCode   string `json:"referral_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ReferredWallet == "" {
		writeError(w, http.StatusBadRequest, "referred_wallet is required")
		return
	}

	referrer := req.ReferrerWallet
	if referrer == "" && req.ReferralCode != "" {
		resolved, err := h.referralSvc.ResolveCode(r.Context(), req.ReferralCode)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if resolved == "" {
			writeError(w, http.StatusNotFound, "referral code not found")
			return
		}
		referrer = resolved
	}
	if referrer == "" {
		writeError(w, http.StatusBadRequest, "referrer_wallet or referral_code is required")
		return
	}

	if err := h.referralSvc.BindReferral(r.Context(), req.ReferredWallet, referrer); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":          "mapped",
		"referred_wallet": strings.ToLower(req.ReferredWallet),
		"referrer_wallet": strings.ToLower(referrer),
	})
}

func (h *ReferralHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(pathParts) < 4 {
		writeError(w, http.StatusBadRequest, "invalid path format, expected /api/referral/stats/{wallet}")
		return
	}
	wallet := pathParts[3]

	stats, err := h.referralSvc.GetStats(r.Context(), wallet)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (h *ReferralHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 10
	}

	entries, err := h.referralSvc.GetLeaderboard(r.Context(), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"limit":   limit,
	})
}

type SettlementHandler struct {
	settlementSvc *service.SettlementService
	scheduler     *scheduler.SettlementScheduler
}

func NewSettlementHandler(settlementSvc *service.SettlementService, sched *scheduler.SettlementScheduler) *SettlementHandler {
	return &SettlementHandler{settlementSvc: settlementSvc, scheduler: sched}
}

// Run 外部调度器的结算入口：接收周期起止时间，返回承诺根或空
func (h *SettlementHandler) Run(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		PeriodStart string `json:"period_start"`
		PeriodEnd   string `json:"period_end"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	start, err := time.Parse(time.RFC3339, req.PeriodStart)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid period_start, expected RFC3339")
		return
	}
	end, err := time.Parse(time.RFC3339, req.PeriodEnd)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid period_end, expected RFC3339")
		return
	}

	root, err := h.scheduler.TriggerManualSettlement(r.Context(), start.UTC(), end.UTC())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := map[string]interface{}{
		"period_start": start.UTC().Format(time.RFC3339),
		"period_end":   end.UTC().Format(time.RFC3339),
	}
	if root == "" {
		resp["merkle_root"] = nil
	} else {
		resp["merkle_root"] = root
	}
	writeJSON(w, http.StatusOK, resp)
}

// Proof 为钱包重新生成某周期的包含性证明
func (h *SettlementHandler) Proof(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	wallet := r.URL.Query().Get("wallet")
	if wallet == "" {
		writeError(w, http.StatusBadRequest, "wallet is required")
		return
	}

	at := time.Now().UTC()
	if raw := r.URL.Query().Get("period_start"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid period_start, expected RFC3339")
			return
		}
		at = parsed.UTC()
	}
	start, end := service.PeriodFor(at)

	proof, err := h.settlementSvc.ProofFor(r.Context(), wallet, start, end)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if proof == nil {
		writeError(w, http.StatusNotFound, "no eligible reward for wallet in period")
		return
	}

	writeJSON(w, http.StatusOK, proof)
}

func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
