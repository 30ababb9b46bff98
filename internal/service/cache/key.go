package cache

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/spaolacci/murmur3"
)

// Алгоритмы вычисления ключа кэша
const (
	HashMD5     = "md5"
	HashSHA256  = "sha256"
	HashXXHash  = "xxhash"
	HashMurmur3 = "murmur3"
)

// KeyDeriver вычисляет ключ кэша из сырых байт изображения.
// Функция чистая: одинаковые байты дают одинаковый ключ.
type KeyDeriver struct {
	prefix string
	sum    func([]byte) string
}

// NewKeyDeriver создает KeyDeriver для заданного алгоритма.
// md5 совпадает с ключами, которые писал прежний деплой.
func NewKeyDeriver(algorithm, prefix string) (*KeyDeriver, error) {
	var sum func([]byte) string

	switch algorithm {
	case HashMD5, "":
		sum = func(data []byte) string {
			h := md5.Sum(data)
			return hex.EncodeToString(h[:])
		}
	case HashSHA256:
		sum = func(data []byte) string {
			h := sha256.Sum256(data)
			return hex.EncodeToString(h[:])
		}
	case HashXXHash:
		sum = func(data []byte) string {
			return fmt.Sprintf("%016x", xxhash.Sum64(data))
		}
	case HashMurmur3:
		sum = func(data []byte) string {
			h1, h2 := murmur3.Sum128(data)
			return fmt.Sprintf("%016x%016x", h1, h2)
		}
	default:
		return nil, fmt.Errorf("неизвестный алгоритм ключа кэша: %s", algorithm)
	}

	return &KeyDeriver{prefix: prefix, sum: sum}, nil
}

// Derive возвращает ключ кэша для изображения
func (d *KeyDeriver) Derive(data []byte) string {
	return d.prefix + d.sum(data)
}
