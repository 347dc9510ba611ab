// Package idgenerator contains the default [domain.IDGenerator] implementation
// producing alphanumeric object ids.
package idgenerator

import (
	"crypto/rand"
	"io"

	"github.com/vinicius-lino-figueiredo/docadapter/domain"
)

// ObjectIDLength is the length of generated object ids.
const ObjectIDLength = 10

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// bytes at or above this value would skew the distribution.
const maxByte = 256 - 256%len(alphabet)

// IDGenerator implements [domain.IDGenerator].
type IDGenerator struct {
	reader io.Reader
}

// NewIDGenerator returns a new implementation of [domain.IDGenerator].
func NewIDGenerator(opts ...Option) domain.IDGenerator {
	i := IDGenerator{
		reader: rand.Reader,
	}
	for _, opt := range opts {
		opt(&i)
	}
	return &i
}

// GenerateID implements [domain.IDGenerator].
func (i *IDGenerator) GenerateID(l int) (string, error) {
	res := make([]byte, 0, l)
	buf := make([]byte, max(8, l+l/2))
	for len(res) < l {
		n, err := io.ReadFull(i.reader, buf)
		if err != nil && n == 0 {
			return "", err
		}
		for _, b := range buf[:n] {
			if int(b) >= maxByte {
				continue
			}
			res = append(res, alphabet[int(b)%len(alphabet)])
			if len(res) == l {
				break
			}
		}
		if err != nil && len(res) < l {
			return "", err
		}
	}
	return string(res), nil
}
