package assurance

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/contractanalyser/authbridge/pkg/idp"
)

func verifiedTOTP() idp.SecondFactor {
	return idp.SecondFactor{ID: uuid.New(), Type: idp.FactorTypeTOTP, Status: idp.FactorStatusVerified}
}

func TestEvaluate(t *testing.T) {
	aal1 := &idp.Session{UserID: uuid.New(), AssuranceLevel: idp.AssuranceLevelFirst}
	aal2 := &idp.Session{UserID: uuid.New(), AssuranceLevel: idp.AssuranceLevelSecond}

	tests := []struct {
		name       string
		session    *idp.Session
		factors    []idp.SecondFactor
		justPassed bool
		want       Level
		wantByFlag bool
	}{
		{
			name:    "nil session is unknown",
			session: nil,
			factors: []idp.SecondFactor{verifiedTOTP()},
			want:    Unknown,
		},
		{
			name:    "no factors is sufficient",
			session: aal1,
			want:    Sufficient,
		},
		{
			name:       "no factors ignores flag",
			session:    aal1,
			justPassed: true,
			want:       Sufficient,
		},
		{
			name:    "unverified factor does not gate",
			session: aal1,
			factors: []idp.SecondFactor{{ID: uuid.New(), Type: idp.FactorTypeTOTP, Status: idp.FactorStatusUnverified}},
			want:    Sufficient,
		},
		{
			name:    "verified factor and aal1 is insufficient",
			session: aal1,
			factors: []idp.SecondFactor{verifiedTOTP()},
			want:    Insufficient,
		},
		{
			name:    "verified factor and aal2 is sufficient",
			session: aal2,
			factors: []idp.SecondFactor{verifiedTOTP()},
			want:    Sufficient,
		},
		{
			name:       "verified factor and flag is sufficient by flag",
			session:    aal1,
			factors:    []idp.SecondFactor{verifiedTOTP()},
			justPassed: true,
			want:       Sufficient,
			wantByFlag: true,
		},
		{
			name:       "aal2 wins over flag",
			session:    aal2,
			factors:    []idp.SecondFactor{verifiedTOTP()},
			justPassed: true,
			want:       Sufficient,
			wantByFlag: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.session, tt.factors, tt.justPassed)
			assert.Equal(t, tt.want, got.Level)
			assert.Equal(t, tt.wantByFlag, got.ByFlag)
		})
	}
}

func TestFirstVerifiedTOTP(t *testing.T) {
	unverified := idp.SecondFactor{ID: uuid.New(), Type: idp.FactorTypeTOTP, Status: idp.FactorStatusUnverified}
	verified := verifiedTOTP()

	t.Run("skips unverified", func(t *testing.T) {
		got, ok := FirstVerifiedTOTP([]idp.SecondFactor{unverified, verified})
		assert.True(t, ok)
		assert.Equal(t, verified.ID, got.ID)
	})

	t.Run("none enrolled", func(t *testing.T) {
		_, ok := FirstVerifiedTOTP(nil)
		assert.False(t, ok)
	})
}
