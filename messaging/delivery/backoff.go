package delivery

import (
	"math/rand"
	"time"
)

// jitterFraction dispersa los reintentos ±20% para no sincronizar ráfagas
const jitterFraction = 0.2

// Backoff calcula la espera del próximo reintento: base * 2^retryCount,
// acotada por max, con jitter
func Backoff(retryCount int, base, max time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}

	delay := base
	for i := 0; i < retryCount; i++ {
		delay *= 2
		if delay >= max {
			delay = max
			break
		}
	}
	if delay > max {
		delay = max
	}

	// jitter en [1-f, 1+f]
	factor := 1 - jitterFraction + 2*jitterFraction*rand.Float64()
	jittered := time.Duration(float64(delay) * factor)
	if jittered > max {
		jittered = max
	}
	return jittered
}
