package websocket

import (
	"strconv"
	"strings"

	"net/http"

	"github.com/relaywire/wsock/wscompress"
)

// Extension represents a WebSocket extension offer or acknowledgment per
// RFC 6455, section 9.1.
type Extension struct {
	Name   string
	Params map[string]string
}

// ParseExtensions parses every Sec-WebSocket-Extensions header value per
// RFC 6455, section 9.1. Parameter values may be quoted.
func ParseExtensions(header http.Header) []Extension {
	var extensions []Extension
	for _, h := range header.Values("Sec-WebSocket-Extensions") {
		for _, ext := range splitTopLevel(h, ',') {
			ext = strings.TrimSpace(ext)
			if ext == "" {
				continue
			}
			parts := splitTopLevel(ext, ';')
			e := Extension{
				Name:   strings.TrimSpace(parts[0]),
				Params: make(map[string]string),
			}
			for _, param := range parts[1:] {
				param = strings.TrimSpace(param)
				if param == "" {
					continue
				}
				if idx := strings.Index(param, "="); idx >= 0 {
					key := strings.TrimSpace(param[:idx])
					val := strings.TrimSpace(param[idx+1:])
					val = strings.Trim(val, `"`)
					e.Params[key] = val
				} else {
					e.Params[param] = ""
				}
			}
			extensions = append(extensions, e)
		}
	}
	return extensions
}

// splitTopLevel splits s on sep, ignoring separators inside double quotes.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	var inQuotes bool
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuotes = !inQuotes
		case sep:
			if !inQuotes {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// recognizedPermessageDeflateTokens lists the parameter names RFC 7692,
// section 7.1 defines; any other token makes the offer invalid.
var recognizedPermessageDeflateTokens = map[string]bool{
	"client_no_context_takeover": true,
	"server_no_context_takeover": true,
	"client_max_window_bits":     true,
	"server_max_window_bits":     true,
}

// negotiatePermessageDeflateServer builds the server's negotiated Params and
// response extension parameter string from a client's offer (spec.md
// section 6: unknown tokens reject the offer and fall back to no
// compression).
func negotiatePermessageDeflateServer(offer Extension) (wscompress.Params, string, bool) {
	for token := range offer.Params {
		if !recognizedPermessageDeflateTokens[token] {
			return wscompress.Params{}, "", false
		}
	}

	params := wscompress.DefaultParams()
	var resp []string

	if _, ok := offer.Params["client_no_context_takeover"]; ok {
		params.ClientNoContextTakeover = true
		resp = append(resp, "client_no_context_takeover")
	}
	if _, ok := offer.Params["server_no_context_takeover"]; ok {
		params.ServerNoContextTakeover = true
		resp = append(resp, "server_no_context_takeover")
	}

	if v, ok := offer.Params["client_max_window_bits"]; ok {
		bits, ok := parseWindowBits(v)
		if !ok {
			return wscompress.Params{}, "", false
		}
		if bits > 0 {
			params.ClientMaxWindowBits = bits
			resp = append(resp, "client_max_window_bits="+strconv.Itoa(bits))
		} else {
			resp = append(resp, "client_max_window_bits="+strconv.Itoa(params.ClientMaxWindowBits))
		}
	}
	if v, ok := offer.Params["server_max_window_bits"]; ok {
		bits, ok := parseWindowBits(v)
		if !ok {
			return wscompress.Params{}, "", false
		}
		if bits > 0 {
			params.ServerMaxWindowBits = bits
		}
	}

	return params, "; " + strings.Join(resp, "; "), true
}

// negotiatePermessageDeflateClient parses the server's acknowledgment
// extension into Params from the client's perspective.
func negotiatePermessageDeflateClient(ack Extension) (wscompress.Params, bool) {
	for token := range ack.Params {
		if !recognizedPermessageDeflateTokens[token] {
			return wscompress.Params{}, false
		}
	}

	params := wscompress.DefaultParams()
	if _, ok := ack.Params["client_no_context_takeover"]; ok {
		params.ClientNoContextTakeover = true
	}
	if _, ok := ack.Params["server_no_context_takeover"]; ok {
		params.ServerNoContextTakeover = true
	}
	if v, ok := ack.Params["client_max_window_bits"]; ok {
		if bits, ok := parseWindowBits(v); ok && bits > 0 {
			params.ClientMaxWindowBits = bits
		}
	}
	if v, ok := ack.Params["server_max_window_bits"]; ok {
		if bits, ok := parseWindowBits(v); ok && bits > 0 {
			params.ServerMaxWindowBits = bits
		}
	}
	return params, true
}

// parseWindowBits validates a max_window_bits value per RFC 7692, section
// 7.1.2.1: N in [9,15], or an empty value (the bare token, meaning "client
// may choose").
func parseWindowBits(v string) (int, bool) {
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < wscompress.MinWindowBits || n > wscompress.MaxWindowBits {
		return 0, false
	}
	return n, true
}

// clientOfferHeader builds the Sec-WebSocket-Extensions request value a
// Dialer sends when EnableCompression is set.
func clientOfferHeader() string {
	return "permessage-deflate; client_max_window_bits"
}
