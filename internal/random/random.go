package random

import (
	"math/rand"
	"strings"
	"sync"
	"time"
)

var (
	randSrc = rand.NewSource(time.Now().UnixNano())
	randMu  sync.Mutex
)

// Join codes avoid 0/O and 1/I so players can read them aloud.
const joinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const sessionAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

func RandString(n int) string {
	return randFrom(sessionAlphabet, n)
}

func JoinCode(n int) string {
	return randFrom(joinCodeAlphabet, n)
}

func randFrom(alphabet string, n int) string {
	sb := strings.Builder{}
	sb.Grow(n)
	randMu.Lock()
	defer randMu.Unlock()
	for i := 0; i < n; i++ {
		sb.WriteByte(alphabet[randSrc.Int63()%int64(len(alphabet))])
	}
	return sb.String()
}
