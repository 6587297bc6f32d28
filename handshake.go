package wsengine

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"strings"
)

const (
	headerUpgrade       = "Upgrade"
	headerConn          = "Connection"
	headerAuthorization = "Authorization"
	headerSecWsVersion  = "Sec-WebSocket-Version"
	headerSecWsProto    = "Sec-WebSocket-Protocol"
	headerSecWsExt      = "Sec-WebSocket-Extensions"
	headerSecWsKey      = "Sec-WebSocket-Key"
	headerSecWsAccept   = "Sec-WebSocket-Accept"

	headerUpgradeExpected      = "websocket"
	headerConnExpected         = "Upgrade"
	headerSecWsVersionExpected = "13"

	wsGuid = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

	b64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

	// AcceptKeyLength is the length of a Sec-WebSocket-Accept value:
	// 27 base64 digits for the 20 byte SHA-1 digest plus one '=' pad.
	AcceptKeyLength = 28
)

// DeriveAcceptKey computes the Sec-WebSocket-Accept value for a
// Sec-WebSocket-Key sent by the client.
func DeriveAcceptKey(key string) string {
	sum := sha1.Sum([]byte(key + wsGuid))

	var out [AcceptKeyLength]byte
	n := 0

	// 18 bytes as six whole 3-byte groups
	i := 0
	for ; i+3 <= len(sum); i += 3 {
		v := uint32(sum[i])<<16 | uint32(sum[i+1])<<8 | uint32(sum[i+2])
		out[n] = b64Alphabet[v>>18&0x3f]
		out[n+1] = b64Alphabet[v>>12&0x3f]
		out[n+2] = b64Alphabet[v>>6&0x3f]
		out[n+3] = b64Alphabet[v&0x3f]
		n += 4
	}

	// remaining 2 bytes give 16 bits: three digits and one pad
	v := uint32(sum[i])<<16 | uint32(sum[i+1])<<8
	out[n] = b64Alphabet[v>>18&0x3f]
	out[n+1] = b64Alphabet[v>>12&0x3f]
	out[n+2] = b64Alphabet[v>>6&0x3f]
	out[n+3] = '='

	return string(out[:])
}

// NewRequestKey returns a random Sec-WebSocket-Key for a client handshake.
func NewRequestKey() (string, error) {
	nonce := [16]byte{}

	_, err := rand.Read(nonce[:])
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(nonce[:]), nil
}

// Checks if header equals expected value (case insensitive)
// If yes - returns `"", true`
// If no - returns `"<actual_value>", false`
func headerEquals(h http.Header, header, expectedValue string) (string, bool) {
	actualValue := h.Get(header)
	if strings.EqualFold(expectedValue, actualValue) {
		return "", true
	}
	return actualValue, false
}

// headerContainsToken reports whether any comma separated element of the
// header equals token, ignoring case. Browsers send "keep-alive, Upgrade".
func headerContainsToken(h http.Header, header, token string) bool {
	for _, v := range h.Values(header) {
		for _, p := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(p), token) {
				return true
			}
		}
	}
	return false
}
