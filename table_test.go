package gofat32

import (
	"errors"
	"reflect"
	"testing"

	"github.com/aligator/gofat32/internal/fixture"
)

func TestVolume_SetEntry(t *testing.T) {
	type args struct {
		cluster uint32
		value   uint32
	}
	tests := []struct {
		name    string
		args    args
		wantErr error
	}{
		{name: "free a cluster", args: args{cluster: 3, value: 0}},
		{name: "link", args: args{cluster: 3, value: 5}},
		{name: "end of chain", args: args{cluster: 64, value: 0x0FFFFFFF}},
		{name: "last slot of the table", args: args{cluster: 127, value: 0x0ABCDEF}},
		{name: "slot outside of the table", args: args{cluster: 128, value: 1}, wantErr: ErrClusterRange},
		{name: "value too wide", args: args{cluster: 3, value: 0x10000000}, wantErr: ErrEntryValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := fixture.New(fixture.Options{})
			vol := testingMount(t, img)

			err := vol.SetEntry(tt.args.cluster, tt.args.value)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("SetEntry() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("SetEntry() error = %v", err)
			}

			got, err := vol.Entry(tt.args.cluster)
			if err != nil || got != tt.args.value {
				t.Errorf("Entry() = %#x, %v, want %#x", got, err, tt.args.value)
			}

			for i := 0; i < int(img.Opts.NumberOfFATs); i++ {
				if got := img.FAT(tt.args.cluster, i); got != tt.args.value {
					t.Errorf("FAT copy %d = %#x, want %#x", i, got, tt.args.value)
				}
			}
		})
	}
}

func TestVolume_SetEntry_keepsReservedBits(t *testing.T) {
	img := fixture.New(fixture.Options{})
	img.SetFAT(10, 0xA0000003)
	vol := testingMount(t, img)

	got, err := vol.Entry(10)
	if err != nil || got != 3 {
		t.Fatalf("Entry() = %#x, %v, want 0x3", got, err)
	}

	if err := vol.SetEntry(10, 7); err != nil {
		t.Fatalf("SetEntry() error = %v", err)
	}
	if raw := img.FAT(10, 0); raw != 0xA0000007 {
		t.Errorf("raw FAT value = %#x, want 0xa0000007", raw)
	}
	if raw := img.FAT(11, 0); raw != 0 {
		t.Errorf("neighbour slot changed to %#x", raw)
	}
}

func TestVolume_Entry_outOfRange(t *testing.T) {
	vol := testingMount(t, fixture.New(fixture.Options{}))
	if _, err := vol.Entry(1 << 20); !errors.Is(err, ErrClusterRange) {
		t.Errorf("Entry() error = %v, want %v", err, ErrClusterRange)
	}
}

func TestVolume_Chain(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(img *fixture.Image)
		first   uint32
		want    []uint32
		wantErr error
	}{
		{
			name:  "single cluster",
			setup: func(img *fixture.Image) { img.WriteChain(nil, 5) },
			first: 5,
			want:  []uint32{5},
		},
		{
			name:  "fragmented chain",
			setup: func(img *fixture.Image) { img.WriteChain(nil, 5, 6, 9, 7) },
			first: 5,
			want:  []uint32{5, 6, 9, 7},
		},
		{
			name: "terminated by a free slot",
			setup: func(img *fixture.Image) {
				img.SetFAT(40, 41)
				img.SetFAT(41, 0)
			},
			first: 40,
			want:  []uint32{40, 41},
		},
		{
			name: "terminated by the bad cluster marker",
			setup: func(img *fixture.Image) {
				img.SetFAT(40, 0x0FFFFFF7)
			},
			first: 40,
			want:  []uint32{40},
		},
		{
			name: "loop",
			setup: func(img *fixture.Image) {
				img.SetFAT(20, 21)
				img.SetFAT(21, 20)
			},
			first:   20,
			wantErr: ErrCorruptChain,
		},
		{
			name:    "link outside of the data area",
			setup:   func(img *fixture.Image) { img.SetFAT(30, 500) },
			first:   30,
			wantErr: ErrCorruptChain,
		},
		{
			name:    "reserved first cluster",
			setup:   func(img *fixture.Image) {},
			first:   1,
			wantErr: ErrCorruptChain,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := fixture.New(fixture.Options{})
			tt.setup(img)
			vol := testingMount(t, img)

			got, err := vol.Chain(tt.first)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Chain() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}
			if err != nil || !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Chain() = %v, %v, want %v", got, err, tt.want)
			}
		})
	}
}

func TestIsChainEnd(t *testing.T) {
	tests := []struct {
		value uint32
		want  bool
	}{
		{0, true},
		{1, true},
		{2, false},
		{0x0FFFFFF6, false},
		{0x0FFFFFF7, true},
		{0x0FFFFFF8, true},
		{0x0FFFFFFF, true},
	}
	for _, tt := range tests {
		if got := isChainEnd(tt.value); got != tt.want {
			t.Errorf("isChainEnd(%#x) = %v, want %v", tt.value, got, tt.want)
		}
	}
}
