package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"team-chat/internal/usecase"
)

const (
	sessionCookie     = "session_id"
	correlationHeader = "X-Correlation-Id"
)

// SessionService is the usecase surface the handler drives.
type SessionService interface {
	View(ctx context.Context, sessionID string) (usecase.View, error)
	Send(ctx context.Context, sessionID, text string) (usecase.SendOutput, error)
}

type Handler struct {
	svc SessionService
}

type messageRequest struct {
	Message string `json:"message"`
}

type messageResponse struct {
	Reply     string `json:"reply"`
	SessionID string `json:"sessionId"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func NewHandler(svc SessionService) (*Handler, error) {
	if svc == nil {
		return nil, errors.New("handler: session service must not be nil")
	}
	return &Handler{svc: svc}, nil
}

// Handle routes API Gateway proxy requests:
//
//	GET  /              chat page
//	POST /              chat form submit
//	POST /api/messages  JSON message submit
//	GET  /healthz       liveness
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := strings.TrimSpace(headerValue(req.Headers, correlationHeader))
	if corrID == "" {
		corrID = uuid.NewString()
	}
	logger := slog.With("correlation_id", corrID, "method", req.HTTPMethod, "path", req.Path)

	var resp events.APIGatewayProxyResponse
	switch path := normalizePath(req.Path); {
	case path == "/healthz" && req.HTTPMethod == http.MethodGet:
		resp = textResponse(http.StatusOK, "ok")
	case path == "/" && req.HTTPMethod == http.MethodGet:
		resp = h.renderPage(ctx, logger, cookieValue(req.Headers, sessionCookie), nil)
	case path == "/" && req.HTTPMethod == http.MethodPost:
		resp = h.submitForm(ctx, logger, req)
	case path == "/api/messages" && req.HTTPMethod == http.MethodPost:
		resp = h.submitJSON(ctx, logger, req)
	case path == "/" || path == "/api/messages" || path == "/healthz":
		resp = textResponse(http.StatusMethodNotAllowed, "method not allowed")
	default:
		resp = textResponse(http.StatusNotFound, "not found")
	}

	if resp.Headers == nil {
		resp.Headers = map[string]string{}
	}
	resp.Headers[correlationHeader] = corrID
	return resp, nil
}

func (h *Handler) submitForm(ctx context.Context, logger *slog.Logger, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	sessionID := cookieValue(req.Headers, sessionCookie)
	body, err := requestBody(req)
	if err != nil {
		return textResponse(http.StatusBadRequest, "invalid body")
	}
	form, err := url.ParseQuery(body)
	if err != nil {
		return textResponse(http.StatusBadRequest, "invalid form")
	}

	out, sendErr := h.svc.Send(ctx, sessionID, form.Get("message"))
	if out.SessionID != "" {
		sessionID = out.SessionID
	}
	if sendErr != nil {
		logger.Warn("message not answered", "session", sessionID, "err", sendErr)
	}
	return h.renderPage(ctx, logger, sessionID, sendErr)
}

func (h *Handler) submitJSON(ctx context.Context, logger *slog.Logger, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	body, err := requestBody(req)
	if err != nil {
		return errorJSON(&usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_body"})
	}
	var in messageRequest
	if err := json.Unmarshal([]byte(body), &in); err != nil {
		return errorJSON(&usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_json"})
	}

	out, err := h.svc.Send(ctx, cookieValue(req.Headers, sessionCookie), in.Message)
	if err != nil {
		logger.Warn("message not answered", "session", out.SessionID, "err", err)
		resp := errorJSON(err)
		setSessionCookie(&resp, out.SessionID)
		return resp
	}
	resp := jsonResponse(http.StatusOK, messageResponse{Reply: out.Reply, SessionID: out.SessionID})
	setSessionCookie(&resp, out.SessionID)
	return resp
}

func (h *Handler) renderPage(ctx context.Context, logger *slog.Logger, sessionID string, sendErr error) events.APIGatewayProxyResponse {
	view, err := h.svc.View(ctx, sessionID)
	if err != nil {
		logger.Error("render session failed", "err", err)
		return textResponse(http.StatusInternalServerError, "internal error")
	}

	errMsg := ""
	switch {
	case sendErr != nil:
		errMsg = userMessage(sendErr)
	case view.Err != nil:
		errMsg = view.Err.UserMessage()
	}

	html, err := executePage(view, errMsg)
	if err != nil {
		logger.Error("template execution failed", "err", err)
		return textResponse(http.StatusInternalServerError, "internal error")
	}
	resp := events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers:    map[string]string{"Content-Type": "text/html; charset=utf-8"},
		Body:       html,
	}
	setSessionCookie(&resp, view.SessionID)
	return resp
}

func userMessage(err error) string {
	var ucErr *usecase.Error
	if errors.As(err, &ucErr) {
		return ucErr.UserMessage()
	}
	return "Error getting response: " + err.Error()
}

func statusFor(code usecase.ErrorCode) int {
	switch code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests
	case usecase.ErrorConfig, usecase.ErrorInitialization:
		return http.StatusServiceUnavailable
	case usecase.ErrorTurn:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorJSON(err error) events.APIGatewayProxyResponse {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		ucErr = &usecase.Error{Code: usecase.ErrorInternal, Reason: "unexpected", Err: err}
	}
	return jsonResponse(statusFor(ucErr.Code), errorResponse{
		Error:   string(ucErr.Code),
		Message: ucErr.UserMessage(),
	})
}

func jsonResponse(status int, v any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		return textResponse(http.StatusInternalServerError, "internal error")
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}

func textResponse(status int, body string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "text/plain; charset=utf-8"},
		Body:       body,
	}
}

func setSessionCookie(resp *events.APIGatewayProxyResponse, sessionID string) {
	if sessionID == "" {
		return
	}
	if resp.Headers == nil {
		resp.Headers = map[string]string{}
	}
	c := http.Cookie{
		Name:     sessionCookie,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	resp.Headers["Set-Cookie"] = c.String()
}

func requestBody(req events.APIGatewayProxyRequest) (string, error) {
	if !req.IsBase64Encoded {
		return req.Body, nil
	}
	raw, err := base64.StdEncoding.DecodeString(req.Body)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	return p
}

// headerValue looks key up case-insensitively; API Gateway does not
// normalize header names.
func headerValue(headers map[string]string, key string) string {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func cookieValue(headers map[string]string, name string) string {
	raw := headerValue(headers, "Cookie")
	if raw == "" {
		return ""
	}
	r := http.Request{Header: http.Header{"Cookie": []string{raw}}}
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
