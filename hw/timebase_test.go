package hw

import (
	"testing"
	"time"

	"xtiny/units"
)

func TestTickerExact(t *testing.T) {
	var tk ticker
	tk.rebase(0, units.MHz(1))

	if got := tk.take(999, 1); got != 0 {
		t.Fatalf("take(999ns) = %d, want 0", got)
	}
	if got := tk.take(1000, 1); got != 1 {
		t.Fatalf("take(1us) = %d, want 1", got)
	}
	if got := tk.take(10_000, 1); got != 9 {
		t.Fatalf("take(10us) = %d, want 9", got)
	}
}

// Ticks must elapse at the same absolute time no matter how often the
// account is polled: the total over many tiny takes equals one big take.
func TestTickerNoDrift(t *testing.T) {
	const rate = 312_500 // 3.2us per tick, not a divisor-friendly step
	var incremental, oneshot ticker
	incremental.rebase(0, rate)
	oneshot.rebase(0, rate)

	var now, total uint64
	for i := 0; i < 10_000; i++ {
		now += 333
		total += incremental.take(now, 1)
	}
	if want := oneshot.take(now, 1); total != want {
		t.Fatalf("incremental total = %d, oneshot = %d", total, want)
	}
}

func TestTickerPrescalerPhase(t *testing.T) {
	var tk ticker
	tk.rebase(0, units.MHz(20))

	// 32 input ticks: half a /64 divider period, nothing to hand out.
	if got := tk.take(1600, 64); got != 0 {
		t.Fatalf("take = %d, want 0", got)
	}
	// 32 more complete the period. The first half must not have been
	// dropped by the earlier poll.
	if got := tk.take(3200, 64); got != 1 {
		t.Fatalf("take = %d, want 1", got)
	}
}

func TestMulDiv64(t *testing.T) {
	tests := []struct {
		a, b, d uint64
		want    uint64
	}{
		{0, 5, 3, 0},
		{10, 10, 3, 33},
		{1 << 40, 1 << 40, 1_000_000_000, 1_208_925_819_614_629_174},
		{3_600_000_000_000, 20_000_000, 1_000_000_000, 72_000_000_000},
	}
	for _, tt := range tests {
		if got := mulDiv64(tt.a, tt.b, tt.d); got != tt.want {
			t.Errorf("mulDiv64(%d, %d, %d) = %d, want %d", tt.a, tt.b, tt.d, got, tt.want)
		}
	}
}

func TestVirtualClock(t *testing.T) {
	vc := NewVirtualClock(0)
	if vc.Now() != 0 {
		t.Fatal("fresh clock not at zero")
	}
	vc.Advance(3 * time.Millisecond)
	if got := vc.Now(); got != 3_000_000 {
		t.Fatalf("Now = %d, want 3ms", got)
	}
}

func TestVirtualClockAutoStep(t *testing.T) {
	vc := NewVirtualClock(10 * time.Microsecond)
	n1 := vc.Now()
	n2 := vc.Now()
	if n2-n1 != 10_000 {
		t.Fatalf("autostep advanced by %dns, want 10us", n2-n1)
	}

	var ticks []uint64
	vc.OnTick(func(now uint64) { ticks = append(ticks, now) })
	vc.Now()
	vc.Advance(time.Microsecond)
	if len(ticks) != 2 || ticks[1] != ticks[0]+1000 {
		t.Fatalf("tick hook saw %v", ticks)
	}
}
