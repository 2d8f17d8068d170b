package master

import (
	"errors"

	qrcode "github.com/skip2/go-qrcode"
)

// QRPayload is what a santri card encodes; pengabsen scan it and look the
// student up by NIS.
func QRPayload(s Santri) string { return "SANTRI:" + s.NIS }

// NISFromPayload extracts the NIS from a scanned card. Raw NIS strings are
// accepted too.
func NISFromPayload(payload string) string {
	const prefix = "SANTRI:"
	if len(payload) > len(prefix) && payload[:len(prefix)] == prefix {
		return payload[len(prefix):]
	}
	return payload
}

// QRCode renders the card PNG for a student.
func QRCode(s Santri, size int) ([]byte, error) {
	if s.NIS == "" {
		return nil, errors.New("santri has no nis")
	}
	if size <= 0 {
		size = 256
	}
	return qrcode.Encode(QRPayload(s), qrcode.Medium, size)
}
