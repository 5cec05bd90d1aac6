package paranoia

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// DefaultKeyLength is the AES key length used when locking documents.
const DefaultKeyLength = 256

// PDFCPU is a Codec for PDF documents backed by pdfcpu.
type PDFCPU struct {
	keyLength int
}

// NewPDFCPU creates a PDF codec that locks with AES-256.
func NewPDFCPU() *PDFCPU {
	return &PDFCPU{keyLength: DefaultKeyLength}
}

// State implements Codec. A document that cannot be read without a password, or
// that carries an encryption dictionary, is locked.
func (c *PDFCPU) State(rs io.ReadSeeker) (State, error) {
	ctx, err := api.ReadContext(rs, model.NewDefaultConfiguration())
	if err != nil {
		if isPasswordError(err) {
			return Locked, nil
		}
		return Unlocked, fmt.Errorf("failed to read PDF: %w", err)
	}

	if ctx.Encrypt != nil {
		return Locked, nil
	}
	return Unlocked, nil
}

// Unlock implements Codec.
func (c *PDFCPU) Unlock(rs io.ReadSeeker, w io.Writer, password string) error {
	if err := api.Decrypt(rs, w, withPassword(password)); err != nil {
		if isPasswordError(err) {
			return fmt.Errorf("%w: %v", ErrWrongPassword, err)
		}
		return fmt.Errorf("failed to decrypt PDF: %w", err)
	}
	return nil
}

// Lock implements Codec. The user and owner passwords are both set to password.
func (c *PDFCPU) Lock(rs io.ReadSeeker, w io.Writer, password string) error {
	conf := model.NewAESConfiguration(password, password, c.keyLength)
	if err := api.Encrypt(rs, w, conf); err != nil {
		return fmt.Errorf("failed to encrypt PDF: %w", err)
	}
	return nil
}

// PageCount implements Codec.
func (c *PDFCPU) PageCount(rs io.ReadSeeker, password string) (int, error) {
	n, err := api.PageCount(rs, withPassword(password))
	if err != nil {
		if isPasswordError(err) {
			return 0, fmt.Errorf("%w: %v", ErrWrongPassword, err)
		}
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}
	return n, nil
}

func withPassword(password string) *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.UserPW = password
	conf.OwnerPW = password
	return conf
}

// isPasswordError recognises pdfcpu's password failures. Only some read paths
// return pdfcpu.ErrWrongPassword; the rest mention the password in the message.
func isPasswordError(err error) bool {
	if errors.Is(err, pdfcpu.ErrWrongPassword) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "password")
}
