package base64

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{
			name: "RFC 7515 Appendix A.1 header",
			input: []byte(`{"typ":"JWT",` + "\r\n" +
				` "alg":"HS256"}`),
			want: "eyJ0eXAiOiJKV1QiLA0KICJhbGciOiJIUzI1NiJ9",
		},
		{
			name:  "bytes mapping to URL-safe alphabet",
			input: []byte{3, 236, 255, 224, 193},
			want:  "A-z_4ME",
		},
		{
			name:  "empty input",
			input: nil,
			want:  "",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.want, Encode(test.input))
		})
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []byte
		wantErr bool
	}{
		{
			name:  "round trip",
			input: "A-z_4ME",
			want:  []byte{3, 236, 255, 224, 193},
		},
		{
			name:  "empty input",
			input: "",
			want:  []byte{},
		},
		{
			name:    "padded input is rejected",
			input:   "aGVsbG8=",
			wantErr: true,
		},
		{
			name:    "standard alphabet is rejected",
			input:   "A+z/4ME",
			wantErr: true,
		},
		{
			name:    "whitespace is rejected",
			input:   "aGVs bG8",
			wantErr: true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := Decode(test.input)
			if test.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, test.want, got)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	inputs := [][]byte{
		[]byte("hello"),
		{0, 1, 2, 3, 4, 5, 255},
		[]byte(`{"alg":"HS256"}`),
	}

	for _, input := range inputs {
		decoded, err := Decode(Encode(input))
		require.NoError(t, err)
		require.Equal(t, input, decoded)
	}
}
