package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	apperrors "github.com/wallet-portfolio/internal/errors"
)

// Source returns the latest payloads known for an address
type Source interface {
	Fetch(ctx context.Context, address string) (*Payloads, error)
}

// FileSource reads payloads written by the external fetcher from
// <dir>/<address>/<kind>.json. A missing file means the fetcher had
// nothing of that kind for the address.
type FileSource struct {
	dir string
}

// NewFileSource creates a file source rooted at dir
func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

// Fetch decodes every payload file present for address. When some files are
// malformed the remaining payloads are still returned along with an error
// naming the bad ones.
func (s *FileSource) Fetch(ctx context.Context, address string) (*Payloads, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if address == "" || address == "." || address == ".." || filepath.Base(address) != address {
		return nil, apperrors.NewInvalidAddressError(address)
	}

	p := &Payloads{}
	var errs []error

	read := func(kind string, decode func(io.Reader) error) {
		path := filepath.Join(s.dir, address, kind+".json")
		f, err := os.Open(path) // #nosec G304 - address is a single path element
		if errors.Is(err, os.ErrNotExist) {
			return
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("open %s: %w", path, err))
			return
		}
		defer f.Close()

		if err := decode(f); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
		}
	}

	read(KindTotalBalance, func(r io.Reader) (err error) {
		p.TotalBalance, err = DecodeTotalBalance(r)
		return err
	})
	read(KindTokenList, func(r io.Reader) (err error) {
		p.Tokens, err = DecodeTokenList(r)
		return err
	})
	read(KindNFTList, func(r io.Reader) (err error) {
		p.NFTs, err = DecodeNFTList(r)
		return err
	})
	read(KindSolanaPortfolio, func(r io.Reader) (err error) {
		p.Solana, err = DecodeSolanaPortfolio(r)
		return err
	})
	read(KindBitcoinAddress, func(r io.Reader) (err error) {
		p.Bitcoin, err = DecodeBitcoinAddress(r)
		return err
	})

	return p, errors.Join(errs...)
}
