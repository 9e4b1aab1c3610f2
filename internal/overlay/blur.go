package overlay

import (
	"image"
	"sync"
)

// blurBufferPool recycles scratch buffers for the horizontal pass.
var blurBufferPool = sync.Pool{
	New: func() interface{} { return make([]uint8, 0, 256*1024) },
}

// colSumsPool recycles column accumulators for the vertical pass.
var colSumsPool = sync.Pool{
	New: func() interface{} { return make([]uint32, 0, 1024) },
}

// boxBlur blurs rect of img in place with a separable box filter of the given
// radius. Edge pixels are extended. rect must lie inside img.Rect.
func boxBlur(img *image.RGBA, rect image.Rectangle, radius int) {
	rect = rect.Intersect(img.Rect)
	w, h := rect.Dx(), rect.Dy()
	if w == 0 || h == 0 {
		return
	}
	if radius < 1 {
		radius = 1
	}
	// Keep the window inside the region
	if radius > w/2 {
		radius = w / 2
	}
	if radius > h/2 {
		radius = h / 2
	}
	if radius < 1 {
		return
	}

	neededSize := w * h * 4
	bufPtr := blurBufferPool.Get().([]uint8)
	if cap(bufPtr) < neededSize {
		bufPtr = make([]uint8, neededSize)
	}
	buf := bufPtr[:neededSize]
	defer blurBufferPool.Put(bufPtr)

	stride := img.Stride
	pix := img.Pix
	minX, minY := rect.Min.X, rect.Min.Y
	imgMinX, imgMinY := img.Rect.Min.X, img.Rect.Min.Y
	count := uint32(2*radius + 1)

	// Horizontal pass: image -> buf
	for y := 0; y < h; y++ {
		rowStart := (minY + y - imgMinY) * stride
		bufRowStart := y * w * 4

		var rSum, gSum, bSum uint32
		for k := -radius; k <= radius; k++ {
			px := clampInt(k, 0, w-1)
			off := rowStart + (minX+px-imgMinX)*4
			rSum += uint32(pix[off])
			gSum += uint32(pix[off+1])
			bSum += uint32(pix[off+2])
		}

		for x := 0; x < w; x++ {
			bufOff := bufRowStart + x*4
			buf[bufOff] = uint8(rSum / count)
			buf[bufOff+1] = uint8(gSum / count)
			buf[bufOff+2] = uint8(bSum / count)
			buf[bufOff+3] = 255

			offRemove := rowStart + (minX+clampInt(x-radius, 0, w-1)-imgMinX)*4
			offAdd := rowStart + (minX+clampInt(x+radius+1, 0, w-1)-imgMinX)*4
			rSum = rSum - uint32(pix[offRemove]) + uint32(pix[offAdd])
			gSum = gSum - uint32(pix[offRemove+1]) + uint32(pix[offAdd+1])
			bSum = bSum - uint32(pix[offRemove+2]) + uint32(pix[offAdd+2])
		}
	}

	// Vertical pass: buf -> image, row by row with one running sum per column.
	neededCols := w * 3
	csPtr := colSumsPool.Get().([]uint32)
	if cap(csPtr) < neededCols {
		csPtr = make([]uint32, neededCols)
	}
	colSums := csPtr[:neededCols]
	for i := range colSums {
		colSums[i] = 0
	}
	defer colSumsPool.Put(csPtr)

	for k := -radius; k <= radius; k++ {
		rowOffset := clampInt(k, 0, h-1) * w * 4
		for x := 0; x < w; x++ {
			off := rowOffset + x*4
			colSums[x*3] += uint32(buf[off])
			colSums[x*3+1] += uint32(buf[off+1])
			colSums[x*3+2] += uint32(buf[off+2])
		}
	}

	for y := 0; y < h; y++ {
		dstRowOff := (minY + y - imgMinY) * stride
		removeRow := clampInt(y-radius, 0, h-1) * w * 4
		addRow := clampInt(y+radius+1, 0, h-1) * w * 4

		for x := 0; x < w; x++ {
			dstOff := dstRowOff + (minX+x-imgMinX)*4
			pix[dstOff] = uint8(colSums[x*3] / count)
			pix[dstOff+1] = uint8(colSums[x*3+1] / count)
			pix[dstOff+2] = uint8(colSums[x*3+2] / count)

			offRemove := removeRow + x*4
			offAdd := addRow + x*4
			colSums[x*3] = colSums[x*3] - uint32(buf[offRemove]) + uint32(buf[offAdd])
			colSums[x*3+1] = colSums[x*3+1] - uint32(buf[offRemove+1]) + uint32(buf[offAdd+1])
			colSums[x*3+2] = colSums[x*3+2] - uint32(buf[offRemove+2]) + uint32(buf[offAdd+2])
		}
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
