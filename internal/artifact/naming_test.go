package artifact

import (
	"errors"
	"testing"
)

func TestOutputName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		defaultName string
		prefix      string
		want        string
		wantErr     error
	}{
		{name: "Arm64", defaultName: "app-arm64-v8a-release.apk", prefix: "minex", want: "minex-arm64-v8a.apk"},
		{name: "Armeabi", defaultName: "app-armeabi-v7a-release.apk", prefix: "minex", want: "minex-armeabi-v7a.apk"},
		{name: "X86_64", defaultName: "app-x86_64-release.apk", prefix: "minex", want: "minex-x86_64.apk"},
		{name: "X86", defaultName: "app-x86-debug.apk", prefix: "minex", want: "minex-x86.apk"},
		{name: "FullPath", defaultName: "/build/outputs/apk/release/app-arm64-v8a-release.apk", prefix: "minex", want: "minex-arm64-v8a.apk"},
		{name: "CustomPrefix", defaultName: "app-arm64-v8a-release.apk", prefix: "wages", want: "wages-arm64-v8a.apk"},
		{name: "UniversalBuild", defaultName: "app-release.apk", prefix: "minex", wantErr: ErrNoArchitecture},
		{name: "NoHyphen", defaultName: "app.apk", prefix: "minex", wantErr: ErrNoArchitecture},
		{name: "EmptySegment", defaultName: "app--release.apk", prefix: "minex", wantErr: ErrNoArchitecture},
		{name: "EmptyPrefix", defaultName: "app-arm64-v8a-release.apk", prefix: "", wantErr: ErrInvalidPrefix},
		{name: "PrefixWithSeparator", defaultName: "app-arm64-v8a-release.apk", prefix: "../minex", wantErr: ErrInvalidPrefix},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := OutputName(tc.defaultName, tc.prefix)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected error %v, got %v", tc.wantErr, err)
			}
			if tc.wantErr != nil {
				return
			}
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestABI(t *testing.T) {
	t.Parallel()

	got, err := ABI("app-arm64-v8a-release.apk")
	if err != nil {
		t.Fatalf("ABI returned error: %v", err)
	}
	if got != "arm64-v8a" {
		t.Fatalf("expected arm64-v8a, got %s", got)
	}
}
