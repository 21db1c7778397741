package header_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/matoous/jwx/pkg/header"
	"github.com/matoous/jwx/pkg/jwa"
	"github.com/stretchr/testify/require"
)

func TestJSONDecode(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(t *testing.T, params header.Parameters)
	}{
		{
			name:  "typ and alg",
			input: `{"typ":"JWT","alg":"HS256"}`,
			check: func(t *testing.T, params header.Parameters) {
				typ, err := params.Type()
				require.NoError(t, err)
				require.Equal(t, header.TypeJWT, typ)

				alg, err := params.Algorithm()
				require.NoError(t, err)
				require.Equal(t, jwa.HS256, alg)
			},
		},
		{
			name:  "typ and alg and kid",
			input: `{"typ":"JWT","alg":"HS256","kid":"key-id"}`,
			check: func(t *testing.T, params header.Parameters) {
				kid, err := params.KeyID()
				require.NoError(t, err)
				require.Equal(t, "key-id", kid)
			},
		},
		{
			name:  "alg and enc",
			input: `{"alg":"A128KW","enc":"A128CBC-HS256"}`,
			check: func(t *testing.T, params header.Parameters) {
				alg, err := params.Algorithm()
				require.NoError(t, err)
				require.Equal(t, jwa.A128KW, alg)

				enc, err := params.Encryption()
				require.NoError(t, err)
				require.Equal(t, jwa.A128CBCHS256, enc)
			},
		},
		{
			name:  "crit",
			input: `{"typ":"JWT","alg":"HS256","exp":123,"crit":["exp","nbf"]}`,
			check: func(t *testing.T, params header.Parameters) {
				crit, err := params.CriticalParameters()
				require.NoError(t, err)
				require.Equal(t, []header.ParameterName{"exp", "nbf"}, crit)
			},
		},
		{
			name:  "missing typ",
			input: `{"alg":"HS256"}`,
			check: func(t *testing.T, params header.Parameters) {
				typ, err := params.Type()
				require.Error(t, err)
				require.ErrorIs(t, err, header.ErrParameterNotFound)
				require.Equal(t, "", typ)
			},
		},
		{
			name:  "invalid typ",
			input: `{"typ":123,"alg":"HS256"}`,
			check: func(t *testing.T, params header.Parameters) {
				typ, err := params.Type()
				require.Error(t, err)
				require.ErrorIs(t, err, header.ErrInvalidParameterType)
				require.Equal(t, "", typ)
			},
		},
		{
			name:  "invalid alg",
			input: `{"typ":"JWT","alg":123}`,
			check: func(t *testing.T, params header.Parameters) {
				alg, err := params.Algorithm()
				require.Error(t, err)
				require.ErrorIs(t, err, header.ErrInvalidParameterType)
				require.Equal(t, "", alg)
			},
		},
		{
			name:  "invalid crit",
			input: `{"typ":"JWT","alg":"HS256","crit":"exp"}`,
			check: func(t *testing.T, params header.Parameters) {
				_, err := params.CriticalParameters()
				require.Error(t, err)
				require.ErrorIs(t, err, header.ErrInvalidParameterType)
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var params header.Parameters
			err := json.NewDecoder(strings.NewReader(test.input)).Decode(&params)
			require.NoError(t, err)

			test.check(t, params)
		})
	}
}

func TestEnsureCriticalUnderstood(t *testing.T) {
	tests := []struct {
		name       string
		protected  header.Parameters
		understood []header.ParameterName
		wantErr    bool
	}{
		{
			name:      "no crit",
			protected: header.Parameters{header.Algorithm: jwa.HS256},
		},
		{
			name: "understood extension",
			protected: header.Parameters{
				header.Algorithm: jwa.HS256,
				"exp":            1363284000,
				header.Critical:  []any{"exp"},
			},
			understood: []header.ParameterName{"exp"},
		},
		{
			name: "unknown extension fails closed",
			protected: header.Parameters{
				header.Algorithm: jwa.HS256,
				"unknownParam":   true,
				header.Critical:  []any{"unknownParam"},
			},
			wantErr: true,
		},
		{
			name: "registered name is not allowed in crit",
			protected: header.Parameters{
				header.Algorithm: jwa.HS256,
				header.Critical:  []any{"alg"},
			},
			understood: []header.ParameterName{"alg"},
			wantErr:    true,
		},
		{
			name: "listed parameter must be present",
			protected: header.Parameters{
				header.Algorithm: jwa.HS256,
				header.Critical:  []any{"exp"},
			},
			understood: []header.ParameterName{"exp"},
			wantErr:    true,
		},
		{
			name: "empty crit is malformed",
			protected: header.Parameters{
				header.Algorithm: jwa.HS256,
				header.Critical:  []any{},
			},
			wantErr: true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := header.EnsureCriticalUnderstood(test.protected, test.understood)
			if test.wantErr {
				require.Error(t, err)
				require.ErrorIs(t, err, header.ErrCriticalParameter)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestMergeAndClone(t *testing.T) {
	protected := header.Parameters{header.Algorithm: jwa.A128KW}
	unprotected := header.Parameters{header.KeyID: "a"}
	recipient := header.Parameters{header.KeyID: "b"}

	merged := header.Merge(protected, unprotected, recipient)
	require.Equal(t, jwa.A128KW, merged[header.Algorithm])
	require.Equal(t, "b", merged[header.KeyID])

	clone := protected.Clone()
	clone[header.Algorithm] = jwa.A256KW
	require.Equal(t, jwa.A128KW, protected[header.Algorithm])
}
