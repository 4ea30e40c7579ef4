package grid

import "github.com/pbrusco/musicians-helper/model"

// Click 节拍器的一次点击
type Click struct {
	Time     float64 `json:"time"`
	Measure  int     `json:"measure"`
	Beat     int     `json:"beat"`
	Downbeat bool    `json:"downbeat"`
}

// Clicks 返回 [from, to) 内的所有点击
func Clicks(t Timeline, cfg model.GridConfig, from, to float64) []Click {
	if to <= from {
		return nil
	}
	var clicks []Click
	for _, slot := range t {
		if slot.End() <= from {
			continue
		}
		if slot.Start >= to {
			break
		}
		interval := scaledInterval(slot, cfg)
		if interval <= 0 {
			continue
		}
		for k := 0; ; k++ {
			offset := float64(k) * interval
			if offset >= slot.Duration-1e-9 {
				break
			}
			at := slot.Start + offset
			if at >= to {
				break
			}
			if at < from {
				continue
			}
			clicks = append(clicks, Click{
				Time:     at,
				Measure:  slot.Index,
				Beat:     k + 1,
				Downbeat: k == 0,
			})
		}
	}
	return clicks
}
