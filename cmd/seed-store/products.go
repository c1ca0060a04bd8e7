package main

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/xenking/greenhouse/internal/domain/product"
)

// openProducts opens path, transparently decompressing .gz files.
func openProducts(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}

	gz, err := pgzip.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(err, "create gzip reader for %s", path)
	}
	return gzFile{Reader: gz, file: f}, nil
}

type gzFile struct {
	*pgzip.Reader
	file *os.File
}

func (g gzFile) Close() error {
	err := g.Reader.Close()
	if cerr := g.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// parseProducts reads a JSON array of products. Prices may be numbers or
// strings; products without createdAt get now.
func parseProducts(r io.Reader, now time.Time) ([]product.Product, error) {
	var out []product.Product
	d := jx.Decode(r, 64<<10)
	err := d.Arr(func(d *jx.Decoder) error {
		p := product.Product{CreatedAt: now}
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			return productField(d, key, &p)
		}); err != nil {
			return errors.Wrapf(err, "product %d", len(out))
		}
		if p.ID == "" || p.Title == "" {
			return errors.Errorf("product %d: id and title are required", len(out))
		}
		if p.Price.IsNegative() {
			return errors.Errorf("product %s: negative price", p.ID)
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "parse products")
	}
	return out, nil
}

func productField(d *jx.Decoder, key string, p *product.Product) error {
	var err error
	switch key {
	case "id":
		p.ID, err = d.Str()
	case "title":
		p.Title, err = d.Str()
	case "imageRef":
		p.ImageRef, err = d.Str()
	case "description":
		p.Description, err = d.Str()
	case "category":
		p.Category, err = d.Str()
	case "price":
		p.Price, err = decodePrice(d)
	case "createdAt":
		var s string
		if s, err = d.Str(); err == nil {
			p.CreatedAt, err = time.Parse(time.RFC3339, s)
		}
	default:
		err = d.Skip()
	}
	return err
}

func decodePrice(d *jx.Decoder) (decimal.Decimal, error) {
	if d.Next() == jx.String {
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	}
	n, err := d.Num()
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(n.String())
}
