package filter

import (
	"github.com/goopsie/pngtodds/pkg/config"
	"github.com/goopsie/pngtodds/pkg/imaging"
)

// PopulateMipmap fills every level above the base by blurring the base with
// a Gaussian pre-filter scaled to that level's downsample ratio, then
// resampling the blurred copy down with the selected filter. Every level is
// derived directly from the base, never chained level-to-level, so blur
// error never accumulates across the chain.
func PopulateMipmap(chain *imaging.MipmapImage, ft config.FilterType, blurFactor float64) {
	base := chain.Base()
	levels := chain.Mips()
	if len(levels) <= 1 {
		return
	}

	blurred := imaging.NewMipmapChain(base.Width(), base.Height(), false).Base()

	for k := 1; k < len(levels); k++ {
		level := chain.Mip(k)
		ratio := float64(base.Width()+base.Height()) / float64(level.Width()+level.Height())
		Blur(blurred, base, blurFactor*ratio)
		Resample(level, blurred, ft)
	}
}
