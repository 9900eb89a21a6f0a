package server

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/medx/internal/services"
	"github.com/desertthunder/medx/internal/shared"
)

const (
	CallbackPath = "/callback"
	TokenPath    = "/token"

	maxTokenBody = 16 << 10
)

// ImplicitResult carries the redirect location captured by the callback page.
type ImplicitResult struct {
	Location *url.URL // full redirect URL including its fragment
	err      error
}

func (r *ImplicitResult) Error() error {
	return r.err
}

// ImplicitHandler captures the implicit grant redirect.
//
// The token arrives in the URL fragment, which browsers never send to the server, so GET /callback
// serves a page whose script posts its own location to POST /token and then strips the fragment from
// the address bar. The first location whose fragment carries an access_token or an error is delivered
// through [ImplicitHandler.Result]; anything else is rejected without consuming it.
type ImplicitHandler struct {
	resultChan  chan ImplicitResult
	once        sync.Once
	callbackHit bool
	mu          sync.Mutex
	logger      *log.Logger
}

// NewImplicitHandler creates a handler that delivers one result.
func NewImplicitHandler(logger *log.Logger) *ImplicitHandler {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &ImplicitHandler{
		resultChan: make(chan ImplicitResult, 1),
		logger:     logger,
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *ImplicitHandler) Routes() []string {
	return []string{CallbackPath, TokenPath}
}

func (h *ImplicitHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == CallbackPath && r.Method == http.MethodGet:
		h.serveCallbackPage(w)
	case r.URL.Path == TokenPath && r.Method == http.MethodPost:
		h.serveToken(w, r)
	case r.URL.Path == CallbackPath:
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	case r.URL.Path == TokenPath:
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	default:
		http.NotFound(w, r)
	}
}

func (h *ImplicitHandler) serveCallbackPage(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := callbackPage.Execute(w, map[string]string{"TokenPath": TokenPath}); err != nil {
		h.logger.Warn("failed to render callback page", "error", err)
	}
}

type tokenResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

func writeTokenResponse(w http.ResponseWriter, status int, resp tokenResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *ImplicitHandler) serveToken(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxTokenBody)
	if err := r.ParseForm(); err != nil {
		writeTokenResponse(w, http.StatusBadRequest, tokenResponse{Message: "Malformed request"})
		return
	}

	loc, err := url.Parse(r.PostForm.Get("location"))
	if err != nil || loc.Fragment == "" {
		// A reload of the page after the fragment was stripped lands here; it must not consume the result.
		writeTokenResponse(w, http.StatusBadRequest, tokenResponse{Message: "No authorization data in the redirect"})
		return
	}

	values := services.ParseFragment(loc.Fragment)
	_, hasToken := values["access_token"]
	errParam, hasErr := values["error"]
	if !hasToken && !hasErr {
		writeTokenResponse(w, http.StatusBadRequest, tokenResponse{Message: "No authorization data in the redirect"})
		return
	}

	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		writeTokenResponse(w, http.StatusConflict, tokenResponse{Message: "Callback already processed"})
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	if hasErr {
		h.Send(ImplicitResult{err: fmt.Errorf("%w: %s", shared.ErrAuthFailed, errParam)})
		writeTokenResponse(w, http.StatusOK, tokenResponse{Message: "Authorization was denied: " + errParam})
		return
	}

	h.Send(ImplicitResult{Location: loc})
	writeTokenResponse(w, http.StatusOK, tokenResponse{OK: true, Message: "You can close this window and return to the terminal."})
}

// Send delivers result through the channel. Only the first call has an effect.
func (h *ImplicitHandler) Send(result ImplicitResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the channel that receives exactly one result and is then closed.
func (h *ImplicitHandler) Result() <-chan ImplicitResult {
	return h.resultChan
}

var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>Tara Brach Meditations</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1 id="title">Finishing sign in…</h1>
        <p id="status">Handing your session to the terminal.</p>
    </div>
    <script>
    (function () {
        var title = document.getElementById("title");
        var status = document.getElementById("status");
        var body = new URLSearchParams();
        body.set("location", window.location.href);
        history.replaceState(null, "", window.location.pathname);
        fetch("{{.TokenPath}}", { method: "POST", body: body })
            .then(function (resp) { return resp.json().then(function (data) { return [resp.ok, data]; }); })
            .then(function (res) {
                title.textContent = res[0] && res[1].ok ? "✓ Signed in" : "Sign in incomplete";
                status.textContent = res[1].message;
            })
            .catch(function () {
                title.textContent = "Sign in incomplete";
                status.textContent = "The terminal is no longer listening.";
            });
    })();
    </script>
</body>
</html>
`))
