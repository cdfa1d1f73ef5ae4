// Package api exposes the JSON HTTP surface: presence, conversations,
// messaging history, wallet, stories, and QR friend invites. All routes
// require a bearer token.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"loop/cmd/internal/invite"
	"loop/cmd/internal/realtime"
	"loop/cmd/internal/social"
	"loop/cmd/internal/story"
	"loop/cmd/internal/wallet"
	"loop/cmd/security/token"
)

const defaultMaxBodyBytes = 64 << 10

// Handler wires HTTP endpoints to the domain services.
type Handler struct {
	log          *slog.Logger
	verifier     *token.Verifier
	chat         *social.Service
	wallets      *wallet.Service
	stories      *story.Service
	invites      *invite.Service
	maxBodyBytes int64
}

// NewHandler constructs the API handler. All dependencies are required.
func NewHandler(log *slog.Logger, verifier *token.Verifier, chat *social.Service, wallets *wallet.Service, stories *story.Service, invites *invite.Service) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if verifier == nil {
		return nil, errors.New("api: nil token verifier")
	}
	if chat == nil || wallets == nil || stories == nil || invites == nil {
		return nil, errors.New("api: nil service")
	}
	return &Handler{
		log:          log,
		verifier:     verifier,
		chat:         chat,
		wallets:      wallets,
		stories:      stories,
		invites:      invites,
		maxBodyBytes: defaultMaxBodyBytes,
	}, nil
}

// Register wires API routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/api/presence", h.handlePresence)
	mux.HandleFunc("/api/conversations", h.handleConversations)
	mux.HandleFunc("/api/conversations/dm", h.handleDMCreate)
	mux.HandleFunc("/api/conversations/history", h.handleHistory)
	mux.HandleFunc("/api/messages", h.handleSendMessage)
	mux.HandleFunc("/api/typing", h.handleTyping)
	mux.HandleFunc("/api/wallet", h.handleWallet)
	mux.HandleFunc("/api/wallet/transfer", h.handleTransfer)
	mux.HandleFunc("/api/stories", h.handleStoryPost)
	mux.HandleFunc("/api/stories/feed", h.handleStoryFeed)
	mux.HandleFunc("/api/invites/qr", h.handleQRIssue)
	mux.HandleFunc("/api/invites/accept", h.handleQRAccept)
}

// requireUser authenticates the request from its bearer token. On failure
// it writes the 401 and returns ok=false.
func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(raw, prefix) {
		writeError(w, http.StatusUnauthorized, "not_authorized", "missing bearer token")
		return "", false
	}
	userID, err := h.verifier.Verify(strings.TrimSpace(raw[len(prefix):]))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "not_authorized", "invalid token")
		return "", false
	}
	return userID, true
}

// writeServiceError maps domain errors onto HTTP responses.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, realtime.ErrNotAMember):
		writeError(w, http.StatusForbidden, "not_a_member", "not a member of this conversation")
	case errors.Is(err, realtime.ErrNotAuthorized):
		writeError(w, http.StatusUnauthorized, "not_authorized", "not authorized")
	case errors.Is(err, social.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user_not_found", "user not found")
	case errors.Is(err, social.ErrNotFound), errors.Is(err, story.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, invite.ErrNotFound):
		writeError(w, http.StatusNotFound, "invite_not_found", "invite not found")
	case errors.Is(err, invite.ErrExpired):
		writeError(w, http.StatusGone, "invite_expired", "invite expired")
	case errors.Is(err, invite.ErrInvalidSignature):
		writeError(w, http.StatusBadRequest, "invalid_signature", "invite signature does not verify")
	case errors.Is(err, invite.ErrSelfInvite):
		writeError(w, http.StatusBadRequest, "self_invite", "cannot accept your own invite")
	case errors.Is(err, wallet.ErrSelfTransfer):
		writeError(w, http.StatusBadRequest, "self_transfer", "cannot transfer to yourself")
	case errors.Is(err, wallet.ErrInsufficientBalance):
		writeError(w, http.StatusConflict, "insufficient_balance", "not enough coins")
	case errors.Is(err, wallet.ErrMonthlyCapExceeded):
		writeError(w, http.StatusForbidden, "monthly_cap_exceeded", "monthly spending cap reached")
	case errors.Is(err, social.ErrInvalidInput),
		errors.Is(err, wallet.ErrInvalidInput),
		errors.Is(err, story.ErrInvalidInput),
		errors.Is(err, invite.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request")
	default:
		h.log.ErrorContext(r.Context(), "api request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "please retry later")
	}
}

// ---- handlers ----

func (h *Handler) handlePresence(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req presenceRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	if err := h.chat.SetPresence(r.Context(), userID, req.Status); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, presenceResponse{UserID: userID, Status: req.Status})
}

func (h *Handler) handleConversations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	summaries, err := h.chat.Summaries().ListSummaries(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conversationListResponse{Conversations: summaries})
}

func (h *Handler) handleDMCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req dmCreateRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	conv, err := h.chat.CreateDM(r.Context(), userID, req.UserID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	summary, found, err := h.chat.Summaries().Summarize(r.Context(), conv.ID, userID)
	if err != nil || !found {
		if err == nil {
			err = social.ErrNotFound
		}
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	conversationID := strings.TrimSpace(q.Get("conversationId"))
	if conversationID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "conversationId is required")
		return
	}
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be an integer")
			return
		}
		limit = n
	}

	messages, next, err := h.chat.History(r.Context(), userID, conversationID, q.Get("cursor"), limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{Messages: messages, NextCursor: next})
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	msg, err := h.chat.SendMessage(r.Context(), userID, req.ConversationID, req.Kind, req.Text, req.MediaURL)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (h *Handler) handleTyping(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req typingRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	if err := h.chat.Typing(r.Context(), userID, req.ConversationID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleWallet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	view, err := h.wallets.Get(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	transfers := make([]transferView, 0, len(view.Transfers))
	for _, t := range view.Transfers {
		transfers = append(transfers, toTransferView(t))
	}
	writeJSON(w, http.StatusOK, walletResponse{Balance: view.Wallet.Coins, Transfers: transfers})
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req transferRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	res, err := h.wallets.Transfer(r.Context(), userID, req.ToID, req.Coins, req.Memo)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transferResponse{
		Transfer: toTransferView(res.Transfer),
		Balance:  res.SenderBalance,
	})
}

func (h *Handler) handleStoryPost(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req storyPostRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	st, err := h.stories.Post(r.Context(), userID, req.MediaURL)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStoryView(st))
}

func (h *Handler) handleStoryFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	feed, err := h.stories.Feed(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	stories := make([]storyView, 0, len(feed))
	for _, st := range feed {
		stories = append(stories, toStoryView(st))
	}
	writeJSON(w, http.StatusOK, storyFeedResponse{Stories: stories})
}

func (h *Handler) handleQRIssue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	issued, err := h.invites.IssueQR(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, qrIssueResponse{
		QRPNG:     issued.QRPNG,
		Payload:   issued.Payload,
		Signature: issued.Signature,
		ExpiresAt: issued.ExpiresAt,
	})
}

func (h *Handler) handleQRAccept(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req qrAcceptRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	convID, err := h.invites.AcceptQR(r.Context(), userID, req.Payload, req.Signature)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, qrAcceptResponse{ConversationID: convID})
}

func toTransferView(t wallet.Transfer) transferView {
	return transferView{
		ID:        t.ID,
		FromID:    t.FromID,
		ToID:      t.ToID,
		Coins:     t.Coins,
		Memo:      t.Memo,
		CreatedAt: t.CreatedAt,
	}
}

func toStoryView(st story.Story) storyView {
	return storyView{
		ID:        st.ID,
		UserID:    st.UserID,
		MediaURL:  st.MediaURL,
		CreatedAt: st.CreatedAt,
		ExpiresAt: st.ExpiresAt,
	}
}
