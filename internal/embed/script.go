// Package embed builds the storefront delivery artifacts: the public
// configuration document served to the widget, its content hash, and the
// self-contained loader script returned from the embed endpoint.
//
// The hash covers every field that affects rendering. The loader stores the
// hash in localStorage and, on each poll, reloads the page whenever the
// served hash differs from the stored one, so theme editors see saved
// changes without a manual refresh.
package embed

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/storechat/widget-backend/internal/domain"
)

// ConfigDocument is the public JSON shape consumed by the loader script.
// Field names are part of the storefront contract.
type ConfigDocument struct {
	Enabled        bool   `json:"enabled"`
	Shop           string `json:"shop"`
	Title          string `json:"title"`
	Color          string `json:"color"`
	Greeting       string `json:"greeting"`
	Position       string `json:"position"`
	AgentName      string `json:"agentName"`
	AgentRole      string `json:"agentRole"`
	ResponseLength string `json:"responseLength"`
	Language       string `json:"language"`
	Tone           string `json:"tone"`
	Avatar         string `json:"avatar"`
	ColorScheme    string `json:"colorScheme"`
	StartColor     string `json:"startColor"`
	EndColor       string `json:"endColor"`
	ChatBgColor    string `json:"chatBgColor"`
	FontFamily     string `json:"fontFamily"`
	FontColor      string `json:"fontColor"`
	OpenByDefault  string `json:"openByDefault"`
	IsPulsing      bool   `json:"isPulsing"`
	ConfigHash     string `json:"configHash"`
	ConfigURL      string `json:"configUrl"`
}

// Document projects a stored configuration into its public shape,
// computing the content hash and the poll URL.
func Document(cfg *domain.WidgetConfig, appURL, apiBasePath string) ConfigDocument {
	doc := ConfigDocument{
		Enabled:        cfg.IsActive,
		Shop:           cfg.Shop,
		Title:          cfg.Title,
		Color:          cfg.Color,
		Greeting:       cfg.Greeting,
		Position:       cfg.Position,
		AgentName:      cfg.AgentName,
		AgentRole:      cfg.AgentRole,
		ResponseLength: cfg.ResponseLength,
		Language:       cfg.Language,
		Tone:           cfg.Tone,
		Avatar:         cfg.Avatar,
		ColorScheme:    cfg.ColorScheme,
		StartColor:     cfg.StartColor,
		EndColor:       cfg.EndColor,
		ChatBgColor:    cfg.ChatBgColor,
		FontFamily:     cfg.FontFamily,
		FontColor:      cfg.FontColor,
		OpenByDefault:  cfg.OpenByDefault,
		IsPulsing:      cfg.IsPulsing,
	}
	doc.ConfigHash = Hash(cfg)
	doc.ConfigURL = strings.TrimRight(appURL, "/") + apiBasePath + "/widget-config?shop=" + cfg.Shop
	return doc
}

// Hash returns a hex SHA-256 over every rendering-relevant field. Any saved
// change to one of these fields changes the hash and triggers a storefront
// reinitialization on the next poll.
func Hash(cfg *domain.WidgetConfig) string {
	h := sha256.New()
	fields := []string{
		fmt.Sprintf("%t", cfg.IsActive),
		cfg.Title,
		cfg.Color,
		cfg.Greeting,
		cfg.Position,
		cfg.AgentName,
		cfg.AgentRole,
		cfg.ResponseLength,
		cfg.Language,
		cfg.Tone,
		cfg.Avatar,
		cfg.ColorScheme,
		cfg.StartColor,
		cfg.EndColor,
		cfg.ChatBgColor,
		cfg.FontFamily,
		cfg.FontColor,
		cfg.OpenByDefault,
		fmt.Sprintf("%t", cfg.IsPulsing),
	}
	h.Write([]byte(strings.Join(fields, "\x1f")))
	return hex.EncodeToString(h.Sum(nil))
}

// BuildScript renders the loader for one shop's current configuration. The
// configuration is inlined as JSON so first paint needs no extra round
// trip; poll controls how often the loader re-checks the served hash.
func BuildScript(cfg *domain.WidgetConfig, appURL, apiBasePath string, poll time.Duration) (string, error) {
	doc := Document(cfg, appURL, apiBasePath)
	payload, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	chatURL := strings.TrimRight(appURL, "/") + apiBasePath + "/chat"

	var b strings.Builder
	b.WriteString("(function () {\n")
	b.WriteString("  'use strict';\n")
	b.WriteString("  if (window.__scwInitialized) { return; }\n")
	b.WriteString("  window.__scwInitialized = true;\n\n")
	fmt.Fprintf(&b, "  var config = %s;\n", payload)
	fmt.Fprintf(&b, "  var chatUrl = %q;\n", chatURL)
	fmt.Fprintf(&b, "  var pollMs = %d;\n", poll.Milliseconds())
	b.WriteString("  var HASH_KEY = 'scwConfigHash';\n\n")
	b.WriteString(loaderBody)
	b.WriteString("})();\n")
	return b.String(), nil
}

// loaderBody is the static half of the loader: rendering, teardown and the
// change-detection poll. It reads the variables declared by BuildScript.
const loaderBody = `  function teardown() {
    var w = document.getElementById('scw-widget');
    if (w && w.parentNode) { w.parentNode.removeChild(w); }
    var p = document.getElementById('scw-panel');
    if (p && p.parentNode) { p.parentNode.removeChild(p); }
  }

  function render(cfg) {
    teardown();
    if (!cfg.enabled) { return; }

    var btn = document.createElement('div');
    btn.id = 'scw-widget';
    btn.setAttribute('role', 'button');
    btn.setAttribute('aria-label', cfg.title);
    btn.style.cssText = 'position:fixed;bottom:20px;' + (cfg.position === 'left' ? 'left' : 'right') +
      ':20px;width:56px;height:56px;border-radius:50%;background:' + cfg.color +
      ';color:#fff;display:flex;align-items:center;justify-content:center;cursor:pointer;' +
      'box-shadow:0 4px 12px rgba(0,0,0,.25);z-index:2147483000;font:24px/1 ' + cfg.fontFamily + ';';
    btn.textContent = '💬';

    var panel = document.createElement('div');
    panel.id = 'scw-panel';
    panel.style.cssText = 'position:fixed;bottom:88px;' + (cfg.position === 'left' ? 'left' : 'right') +
      ':20px;width:320px;max-height:440px;border-radius:12px;background:' + cfg.chatBgColor +
      ';color:' + cfg.fontColor + ';box-shadow:0 8px 24px rgba(0,0,0,.3);display:none;' +
      'flex-direction:column;overflow:hidden;z-index:2147483000;font-family:' + cfg.fontFamily + ';';

    var header = document.createElement('div');
    header.style.cssText = 'padding:12px 16px;background:' + cfg.color + ';color:#fff;font-weight:600;';
    header.textContent = cfg.title;
    panel.appendChild(header);

    var greeting = document.createElement('div');
    greeting.style.cssText = 'padding:16px;font-size:14px;';
    greeting.textContent = cfg.greeting;
    panel.appendChild(greeting);

    btn.addEventListener('click', function () {
      panel.style.display = panel.style.display === 'none' ? 'flex' : 'none';
    });

    document.body.appendChild(btn);
    document.body.appendChild(panel);

    if (cfg.openByDefault === '1') { panel.style.display = 'flex'; }
  }

  function checkForUpdate() {
    fetch(config.configUrl, { cache: 'no-store' })
      .then(function (res) { return res.json(); })
      .then(function (fresh) {
        var known = window.localStorage.getItem(HASH_KEY);
        if (fresh.configHash && fresh.configHash !== known) {
          window.localStorage.setItem(HASH_KEY, fresh.configHash);
          window.location.reload();
        }
      })
      .catch(function () { /* transient; retry on next tick */ });
  }

  function boot() {
    try {
      var known = window.localStorage.getItem(HASH_KEY);
      if (known !== config.configHash) {
        window.localStorage.setItem(HASH_KEY, config.configHash);
      }
    } catch (e) { /* storage unavailable; polling still works */ }
    render(config);
    if (pollMs > 0) { window.setInterval(checkForUpdate, pollMs); }
  }

  if (document.readyState === 'loading') {
    document.addEventListener('DOMContentLoaded', boot);
  } else {
    boot();
  }
`
