package kernel_test

import (
	"testing"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoney(t *testing.T) {
	t.Run("should accept zero and positive amounts", func(t *testing.T) {
		for _, s := range []string{"0", "0.01", "5.50", "1200"} {
			m, err := kernel.MoneyFromString(s)

			require.NoError(t, err)
			assert.True(t, m.Decimal().Equal(decimal.RequireFromString(s)))
		}
	})

	t.Run("should reject negative amounts", func(t *testing.T) {
		_, err := kernel.NewMoney(decimal.NewFromFloat(-0.5))

		require.Error(t, err)
		assert.IsType(t, &errs.ValueIsInvalidError{}, err)
		assert.Contains(t, err.Error(), "-0.5 is negative")
	})

	t.Run("should reject malformed literals", func(t *testing.T) {
		_, err := kernel.MoneyFromString("five")

		require.ErrorIs(t, err, errs.ErrValueIsInvalid)
	})
}

func TestMoney_Arithmetic(t *testing.T) {
	t.Run("should add without float drift", func(t *testing.T) {
		sum := kernel.ZeroMoney()
		for range 10 {
			sum = sum.Add(kernel.MustMoney("0.10"))
		}

		assert.True(t, sum.IsEqual(kernel.MustMoney("1")))
		assert.Equal(t, "1.00", sum.String())
	})

	t.Run("should multiply by quantity", func(t *testing.T) {
		assert.Equal(t, "7.50", kernel.MustMoney("2.50").Mul(3).String())
	})

	t.Run("should compare numerically", func(t *testing.T) {
		assert.True(t, kernel.MustMoney("5.5").IsEqual(kernel.MustMoney("5.50")))
		assert.True(t, kernel.ZeroMoney().IsZero())
	})

	t.Run("should convert float amounts", func(t *testing.T) {
		m, err := kernel.MoneyFromFloat(3.25)

		require.NoError(t, err)
		assert.Equal(t, "3.25", m.String())
	})
}
