package peripheral

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"monotick/monotonic"
)

// STM32F0 timer base addresses. They are identical across the F0 lines;
// the lines differ only in which timers exist.
const (
	stm32TIM1  = 0x40012C00
	stm32TIM2  = 0x40000000
	stm32TIM3  = 0x40000400
	stm32TIM6  = 0x40001000
	stm32TIM7  = 0x40001400
	stm32TIM14 = 0x40002000
	stm32TIM15 = 0x40014000
	stm32TIM16 = 0x40014400
	stm32TIM17 = 0x40014800

	rp2040TIMER  = 0x40054000
	rp2350TIMER0 = 0x400B0000
	rp2350TIMER1 = 0x400B8000

	// RP2 timers tick at 1MHz from the reference tick generator
	rp2TimerHz = 1000000
)

var stm32Timers = map[string]Timer{
	"TIM1":  {Name: "TIM1", Base: stm32TIM1, Width: 16},
	"TIM2":  {Name: "TIM2", Base: stm32TIM2, Width: 32},
	"TIM3":  {Name: "TIM3", Base: stm32TIM3, Width: 16},
	"TIM6":  {Name: "TIM6", Base: stm32TIM6, Width: 16},
	"TIM7":  {Name: "TIM7", Base: stm32TIM7, Width: 16},
	"TIM14": {Name: "TIM14", Base: stm32TIM14, Width: 16},
	"TIM15": {Name: "TIM15", Base: stm32TIM15, Width: 16},
	"TIM16": {Name: "TIM16", Base: stm32TIM16, Width: 16},
	"TIM17": {Name: "TIM17", Base: stm32TIM17, Width: 16},
}

type chip struct {
	family string
	timers []string
}

var (
	f0Common = []string{"TIM1", "TIM3", "TIM14", "TIM16", "TIM17"}
	f0WithT2 = append(slices.Clone(f0Common), "TIM2")
)

func with(base []string, extra ...string) []string {
	return append(slices.Clone(base), extra...)
}

var chips = map[string]chip{
	"stm32f030x8": {"stm32f0x0", with(f0Common, "TIM6", "TIM15")},
	"stm32f030xc": {"stm32f0x0", with(f0Common, "TIM6", "TIM15", "TIM7")},
	"stm32f070xb": {"stm32f0x0", with(f0Common, "TIM6", "TIM15", "TIM7")},

	"stm32f031": {"stm32f0x1", f0WithT2},
	"stm32f051": {"stm32f0x1", with(f0WithT2, "TIM6", "TIM15")},
	"stm32f071": {"stm32f0x1", with(f0WithT2, "TIM6", "TIM15", "TIM7")},
	"stm32f091": {"stm32f0x1", with(f0WithT2, "TIM6", "TIM15", "TIM7")},

	"stm32f042": {"stm32f0x2", f0WithT2},
	"stm32f072": {"stm32f0x2", with(f0WithT2, "TIM6", "TIM15", "TIM7")},

	"stm32f038": {"stm32f0x8", f0WithT2},
	"stm32f048": {"stm32f0x8", f0WithT2},
	"stm32f058": {"stm32f0x8", with(f0WithT2, "TIM6", "TIM15")},
	"stm32f078": {"stm32f0x8", with(f0WithT2, "TIM6", "TIM15", "TIM7")},
	"stm32f098": {"stm32f0x8", with(f0WithT2, "TIM6", "TIM15", "TIM7")},

	"rp2040": {"rp2040", []string{"TIMER"}},
	"rp2350": {"rp2350", []string{"TIMER0", "TIMER1"}},
}

var rp2Timers = map[string]map[string]uintptr{
	"rp2040": {"TIMER": rp2040TIMER},
	"rp2350": {"TIMER0": rp2350TIMER0, "TIMER1": rp2350TIMER1},
}

// Chips returns the supported chip names in sorted order.
func Chips() []string {
	names := maps.Keys(chips)
	slices.Sort(names)
	return names
}

// TimersFor returns every counter available on the chip.
func TimersFor(name string) ([]Timer, error) {
	c, ok := chips[name]
	if !ok {
		return nil, ErrUnknownChip
	}
	timers := make([]Timer, 0, len(c.timers))
	for _, tn := range c.timers {
		t, err := Lookup(name, tn)
		if err != nil {
			return nil, err
		}
		timers = append(timers, t)
	}
	return timers, nil
}

// Lookup returns the configuration record for a timer on a chip.
func Lookup(chipName, timerName string) (Timer, error) {
	c, ok := chips[chipName]
	if !ok {
		return Timer{}, ErrUnknownChip
	}
	if !slices.Contains(c.timers, timerName) {
		return Timer{}, ErrUnknownTimer
	}

	if bases, ok := rp2Timers[chipName]; ok {
		return Timer{
			Name:    timerName,
			Chip:    chipName,
			Family:  c.family,
			Base:    bases[timerName],
			Width:   32,
			Kind:    KindRP2Timer,
			Ratio:   monotonic.Ratio1to1,
			ClockHz: rp2TimerHz,
		}, nil
	}

	t := stm32Timers[timerName]
	t.Chip = chipName
	t.Family = c.family
	t.Kind = KindSTM32TIM
	t.Ratio = monotonic.Ratio1to1
	return t, nil
}
