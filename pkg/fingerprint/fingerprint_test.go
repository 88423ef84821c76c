package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompute(t *testing.T) {
	fp := Compute(map[string]string{
		"requests": "2.28.1",
		"alembic":  "1.5",
		"acre":     "git+https://example.com/acme/acre.git@v2",
	})

	assert.Equal(t,
		"acre=git+https://example.com/acme/acre.git@v2;alembic=1.5;requests=2.28.1",
		fp,
	)
}

func TestComputeOrderIndependent(t *testing.T) {
	a := map[string]string{}
	b := map[string]string{}
	pins := [][2]string{
		{"zzz", "1.0"}, {"aaa", "2.0"}, {"mmm", "3.0"},
	}
	for _, p := range pins {
		a[p[0]] = p[1]
	}
	for i := len(pins) - 1; i >= 0; i-- {
		b[pins[i][0]] = pins[i][1]
	}

	assert.Equal(t, Compute(a), Compute(b))
}

func TestComputeEmpty(t *testing.T) {
	assert.Equal(t, "", Compute(nil))
}

func TestDigestStable(t *testing.T) {
	fp := Compute(map[string]string{"alembic": "1.5"})
	assert.Equal(t, Digest(fp), Digest(fp))
	assert.Len(t, Digest(fp), 16)
	assert.NotEqual(t, Digest(fp), Digest(fp+"x"))
}
