// Package webui drives the administrative web interface of Ricoh devices.
// The devices expose no provisioning API; users are written to the address
// book by replaying the browser's form flow, which means extracting rotating
// anti-forgery tokens from page bodies and submitting multi-step forms over
// an authenticated session.
package webui

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Seiiyes/ricoh/internal/models"
)

// Paths on the device's embedded web server. The locale segment is fixed;
// devices serve the same CGI endpoints under every locale.
const (
	authFormPath    = "/web/guest/es/websys/webArch/authForm.cgi"
	loginPath       = "/web/guest/es/websys/webArch/login.cgi"
	addressListPath = "/web/entry/es/address/adrsList.cgi"
	getUserPath     = "/web/entry/es/address/adrsGetUser.cgi"
	setUserPath     = "/web/entry/es/address/adrsSetUser.cgi"
)

// wimTokenRe matches the hidden anti-forgery token the device embeds in
// every form page. The token rotates on each page load and each submission
// must carry the token of the page it came from.
var (
	wimTokenRe   = regexp.MustCompile(`name="wimToken"\s+value="(\d+)"`)
	entryIndexRe = regexp.MustCompile(`name="entryIndexIn"\s+value="(\d{5})"`)
)

// Markers the device embeds in response bodies. Busy means another session
// holds the address book and the submission can be retried; a session
// timeout means the cached authentication is stale.
var (
	busyMarkers    = []string{"BUSY", "está siendo utilizado"}
	timeoutMarkers = []string{"Tiempo de sesión agotado", "TIMEOUT"}
)

// Status is the terminal state of one provisioning call.
type Status int

const (
	// StatusSuccess means the device accepted the address book entry.
	StatusSuccess Status = iota
	// StatusBusy means the device rejected the submission because its
	// administrative UI is in use. The session stays valid and the call
	// may be retried.
	StatusBusy
	// StatusFailure covers every non-retryable outcome.
	StatusFailure
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusBusy:
		return "busy"
	default:
		return "failure"
	}
}

// Outcome reports the result of a provisioning call. Reason is a
// human-readable explanation for busy and failure outcomes.
type Outcome struct {
	Status Status
	Reason string
}

func success() Outcome           { return Outcome{Status: StatusSuccess} }
func busy(reason string) Outcome { return Outcome{Status: StatusBusy, Reason: reason} }
func failure(format string, args ...interface{}) Outcome {
	return Outcome{Status: StatusFailure, Reason: fmt.Sprintf(format, args...)}
}

// Client provisions users onto Ricoh devices through their web interface.
// Sessions are cached per device address; a Client is safe for concurrent
// use, with calls to the same device serialized internally.
type Client struct {
	adminUser     string
	adminPassword string
	sessions      *SessionStore
	logger        zerolog.Logger
}

// NewClient creates a provisioning client that authenticates to devices
// with the given administrator credentials. An empty password is accepted;
// many devices ship with the admin account unlocked.
func NewClient(adminUser, adminPassword string, timeout time.Duration) *Client {
	return &Client{
		adminUser:     adminUser,
		adminPassword: adminPassword,
		sessions:      NewSessionStore(timeout),
		logger:        log.With().Str("component", "webui").Logger(),
	}
}

// TestConnection reports whether the device's web interface answers at all.
func (c *Client) TestConnection(ctx context.Context, addr string) bool {
	sess := c.sessions.get(addr)
	resp, err := c.do(ctx, sess, http.MethodGet, addr, "/", "", nil)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// ProvisionUser writes one user into the device's address book. The flow is
// authenticate, fetch a token from the address list, fetch the add-user form
// for a fresh token and the assigned entry index, then submit. Every error
// is folded into the returned Outcome; a failing device never panics the
// caller or poisons sessions of other devices.
func (c *Client) ProvisionUser(ctx context.Context, addr string, target models.ProvisioningTarget) Outcome {
	sess := c.sessions.get(addr)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	logger := c.logger.With().Str("device", addr).Str("user", target.Name).Logger()
	logger.Info().Msg("Provisioning user to device")

	if err := c.authenticate(ctx, sess, addr); err != nil {
		logger.Error().Err(err).Msg("Authentication failed")
		return failure("authentication failed: %v", err)
	}

	// Token from the address list page
	listBody, status, err := c.fetch(ctx, sess, http.MethodGet, addr, addressListPath, "", nil)
	if err != nil {
		return failure("cannot reach address list: %v", err)
	}
	if status != http.StatusOK {
		return failure("address list returned status %d", status)
	}
	listToken, ok := extractToken(listBody)
	if !ok {
		logger.Error().Str("body", snippet(listBody)).Msg("No token in address list page")
		return failure("no token found in address list page")
	}

	// The add-user form rotates the token and assigns the entry index
	formBody, status, err := c.fetch(ctx, sess, http.MethodPost, addr, getUserPath,
		encodeForm([]formField{
			{"mode", "ADDUSER"},
			{"outputSpecifyModeIn", "DEFAULT"},
			{"wimToken", listToken},
		}), nil)
	if err != nil {
		return failure("cannot fetch add-user form: %v", err)
	}
	if status != http.StatusOK {
		return failure("add-user form returned status %d", status)
	}
	formToken, ok := extractToken(formBody)
	if !ok {
		logger.Error().Str("body", snippet(formBody)).Msg("No token in add-user form")
		return failure("no token found in add-user form")
	}
	entryIndex := ""
	if m := entryIndexRe.FindStringSubmatch(formBody); m != nil {
		entryIndex = m[1]
	}

	// Submit immediately; the form token expires quickly
	body, status, err := c.fetch(ctx, sess, http.MethodPost, addr, setUserPath,
		encodeForm(userFormFields(formToken, entryIndex, target)),
		map[string]string{
			"X-Requested-With": "XMLHttpRequest",
			"Referer":          "http://" + addr + addressListPath,
		})
	if err != nil {
		return failure("submission failed: %v", err)
	}

	if containsAny(body, timeoutMarkers) {
		// Stale session; force re-authentication on the next call
		sess.authenticated = false
		logger.Warn().Msg("Device reported session timeout")
		return failure("device session timed out")
	}
	if containsAny(body, busyMarkers) {
		logger.Warn().Msg("Device busy, administrative UI in use")
		return busy("device is busy, administrative UI in use by another session")
	}
	if status == http.StatusOK || (status >= 300 && status < 400) {
		logger.Info().Int("status", status).Msg("User provisioned")
		return success()
	}
	return failure("device rejected submission with status %d", status)
}

// authenticate ensures the session holds valid credentials. Devices without
// an admin password serve protected pages directly; otherwise the login form
// token is extracted and base64-encoded credentials are posted with it.
// The caller must hold the session mutex.
func (c *Client) authenticate(ctx context.Context, sess *deviceSession, addr string) error {
	if sess.authenticated {
		return nil
	}

	// A protected page served with a token means no login is required
	body, status, err := c.fetch(ctx, sess, http.MethodGet, addr, addressListPath, "", nil)
	if err != nil {
		return fmt.Errorf("device unreachable: %w", err)
	}
	if status == http.StatusOK && strings.Contains(body, "wimToken") {
		sess.authenticated = true
		return nil
	}

	body, status, err = c.fetch(ctx, sess, http.MethodGet, addr, authFormPath, "", nil)
	if err != nil {
		return fmt.Errorf("cannot fetch login page: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("login page returned status %d", status)
	}
	token, ok := extractToken(body)
	if !ok {
		return fmt.Errorf("no token found in login page")
	}

	password := ""
	if c.adminPassword != "" {
		password = base64.StdEncoding.EncodeToString([]byte(c.adminPassword))
	}
	_, _, err = c.fetch(ctx, sess, http.MethodPost, addr, loginPath, encodeForm([]formField{
		{"wimToken", token},
		{"userid_work", ""},
		{"userid", base64.StdEncoding.EncodeToString([]byte(c.adminUser))},
		{"password_work", ""},
		{"password", password},
		{"open", ""},
	}), nil)
	if err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}

	// Confirm by re-probing the protected page
	body, status, err = c.fetch(ctx, sess, http.MethodGet, addr, addressListPath, "", nil)
	if err != nil {
		return fmt.Errorf("cannot verify login: %w", err)
	}
	if status != http.StatusOK || !strings.Contains(body, "wimToken") {
		return fmt.Errorf("device did not accept administrator credentials")
	}
	sess.authenticated = true
	return nil
}

// do issues one HTTP request through the session's client.
func (c *Client) do(ctx context.Context, sess *deviceSession, method, addr, path, form string, headers map[string]string) (*http.Response, error) {
	var reqBody io.Reader
	if form != "" {
		reqBody = strings.NewReader(form)
	}
	req, err := http.NewRequestWithContext(ctx, method, "http://"+addr+path, reqBody)
	if err != nil {
		return nil, err
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return sess.client.Do(req)
}

// fetch issues a request and drains the body.
func (c *Client) fetch(ctx context.Context, sess *deviceSession, method, addr, path, form string, headers map[string]string) (string, int, error) {
	resp, err := c.do(ctx, sess, method, addr, path, form, headers)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, err
	}
	return string(body), resp.StatusCode, nil
}

// userFormFields builds the add-user submission in the exact field order the
// device's own UI sends. Password fields are present only when a password is
// set; the device treats an empty password field as a password change.
func userFormFields(token, entryIndex string, target models.ProvisioningTarget) []formField {
	fields := []formField{
		{"inputSpecifyModeIn", "WRITE"},
		{"listUpdateIn", "UPDATE"},
		{"wimToken", token},
		{"mode", "ADDUSER"},
		{"pageSpecifiedIn", ""},
		{"pageNumberIn", ""},
		{"outputSpecifyModeIn", ""},
		{"inputSpecifyModeIn", ""},
		{"wayFrom", "adrsGetUser.cgi?outputSpecifyModeIn=SETTINGS"},
		{"wayTo", "adrsList.cgi"},
		{"isSelfPasswordEditMode", "false"},
		{"isLocalAuthPasswordUpdated", "false"},
		{"isFolderAuthPasswordUpdated", "false"},
		{"entryIndexIn", entryIndex},
		{"entryNameIn", target.Name},
		{"entryDisplayNameIn", target.Name},
		{"priorityIn", "5"},
		{"entryTagInfoIn", "1"},
		{"entryTagInfoIn", "1"},
		{"entryTagInfoIn", "1"},
		{"entryTagInfoIn", "1"},
		{"userCodeIn", target.UserCode},
		{"smtpAuthAccountIn", "AUTH_SYSTEM_O"},
		{"folderAuthAccountIn", "AUTH_ASSIGNMENT_O"},
		{"folderAuthUserNameIn", target.NetworkUsername},
		{"ldapAuthAccountIn", "AUTH_SYSTEM_O"},
	}
	for _, fn := range availableFunctions(target.Functions) {
		fields = append(fields, formField{"availableFuncIn", fn})
	}
	fields = append(fields,
		formField{"entryUseIn", "ENTRYUSE_TO_O"},
		formField{"entryUseIn", "ENTRYUSE_FROM_O"},
		formField{"isCertificateExist", "false"},
		formField{"isEncryptAlways", "false"},
		formField{"folderProtocolIn", "SMB_O"},
		formField{"folderPathNameIn", target.Folder.Path},
	)
	if target.NetworkPassword != "" {
		fields = append(fields,
			formField{"folderAuthPasswordIn", target.NetworkPassword},
			formField{"folderAuthPasswordConfirmIn", target.NetworkPassword},
		)
	}
	return fields
}

// availableFunctions maps function flags to the device's function tokens.
func availableFunctions(f models.UserFunctions) []string {
	var funcs []string
	if f.Copier {
		funcs = append(funcs, "COPY")
	}
	if f.Scanner {
		funcs = append(funcs, "SCAN")
	}
	if f.Printer {
		funcs = append(funcs, "PRT")
	}
	if f.DocumentServer {
		funcs = append(funcs, "DOC_SERVER")
	}
	if f.Fax {
		funcs = append(funcs, "FAX")
	}
	if f.Browser {
		funcs = append(funcs, "BROWSER")
	}
	return funcs
}

// formField is one key/value pair of a form submission. The device parses
// submissions positionally, so fields cannot be reordered or deduplicated
// the way url.Values would.
type formField struct {
	key, value string
}

func encodeForm(fields []formField) string {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(f.key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(f.value))
	}
	return b.String()
}

func extractToken(body string) (string, bool) {
	m := wimTokenRe.FindStringSubmatch(body)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func containsAny(body string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(body, marker) {
			return true
		}
	}
	return false
}

func snippet(body string) string {
	if len(body) > 500 {
		return body[:500]
	}
	return body
}
