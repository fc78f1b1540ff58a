package filter

import (
	"github.com/goopsie/pngtodds/pkg/config"
	"github.com/goopsie/pngtodds/pkg/imaging"
)

// ScaleChain reallocates a new mip chain at (newW, newH), resamples the old
// base into the new one with ft, and leaves the remaining levels uninitialized
// for the Mipmap stage to populate afterward — mirroring the "mip chain is
// re-derived (reallocated) for the new base" rule, with mipmap_blur
// deliberately not applied here.
func ScaleChain(old *imaging.MipmapImage, newW, newH int, withMipmaps bool, ft config.FilterType) *imaging.MipmapImage {
	fresh := imaging.NewMipmapChain(newW, newH, withMipmaps)
	Resample(fresh.Base(), old.Base(), ft)
	return fresh
}
