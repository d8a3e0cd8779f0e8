package reconstruction

import "math"

const (
	pixelDeltaThreshold       = 0.001
	gradientThreshold         = 0.015
	secondDerivativeThreshold = 0.008
	minEditRegionSize         = 4
)

// Image is the minimal pixel access the edit detectors need. The four
// channels are indexed 0..3 (R, G, B, A) and out-of-range reads must
// return 0.
type Image interface {
	Dims() (width, height int)
	ChannelAt(x, y, channel int) float64
}

// EditBoundaryInfo holds per-pixel edit flags and boundary weights for a
// whole image, row-major.
type EditBoundaryInfo struct {
	Width           int
	Height          int
	IsEditedRegion  []bool
	BoundaryWeights []float64
}

// NewEditBoundaryInfo allocates zeroed flags for the given dimensions.
func NewEditBoundaryInfo(width, height int) EditBoundaryInfo {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return EditBoundaryInfo{
		Width:           width,
		Height:          height,
		IsEditedRegion:  make([]bool, width*height),
		BoundaryWeights: make([]float64, width*height),
	}
}

// DetectEditBoundaries compares an edited image against its original and
// flags every pixel whose largest channel delta exceeds the threshold,
// then marks pixels whose 3x3 neighbourhood touches both edited and
// unedited pixels as boundary. Mismatched dimensions return empty info.
func DetectEditBoundaries(original, edited Image) EditBoundaryInfo {
	ow, oh := original.Dims()
	ew, eh := edited.Dims()
	if ow != ew || oh != eh {
		return EditBoundaryInfo{}
	}

	result := NewEditBoundaryInfo(ew, eh)

	for y := 0; y < eh; y++ {
		for x := 0; x < ew; x++ {
			maxDiff := 0.0
			for ch := 0; ch < 4; ch++ {
				diff := math.Abs(edited.ChannelAt(x, y, ch) - original.ChannelAt(x, y, ch))
				if diff > maxDiff {
					maxDiff = diff
				}
			}
			if maxDiff > pixelDeltaThreshold {
				result.IsEditedRegion[y*ew+x] = true
			}
		}
	}

	for y := 1; y < eh-1; y++ {
		for x := 1; x < ew-1; x++ {
			idx := y*ew + x
			currentEdited := result.IsEditedRegion[idx]

			isBoundary := false
			for dy := -1; dy <= 1 && !isBoundary; dy++ {
				for dx := -1; dx <= 1 && !isBoundary; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					if result.IsEditedRegion[(y+dy)*ew+(x+dx)] != currentEdited {
						isBoundary = true
					}
				}
			}

			if isBoundary {
				result.BoundaryWeights[idx] = 1.0
			}
		}
	}

	return result
}

func gradientMagnitude(img Image, x, y, channel, width, height int) float64 {
	if x == 0 || x >= width-1 || y == 0 || y >= height-1 {
		return 0
	}
	dx := (img.ChannelAt(x+1, y, channel) - img.ChannelAt(x-1, y, channel)) * 0.5
	dy := (img.ChannelAt(x, y+1, channel) - img.ChannelAt(x, y-1, channel)) * 0.5
	return math.Sqrt(dx*dx + dy*dy)
}

func secondDerivative(img Image, x, y, channel, width, height int) float64 {
	if x == 0 || x >= width-1 || y == 0 || y >= height-1 {
		return 0
	}
	centre := img.ChannelAt(x, y, channel)
	laplacian := img.ChannelAt(x+1, y, channel) + img.ChannelAt(x-1, y, channel) +
		img.ChannelAt(x, y+1, channel) + img.ChannelAt(x, y-1, channel) -
		4.0*centre
	return math.Abs(laplacian)
}

// DetectEditBoundariesSingleImage finds likely edited regions without an
// original to compare against. Pixels with both a strong multi-channel
// gradient and a strong Laplacian are edge candidates; connected non-edge
// regions inside a size band (at least minEditRegionSize pixels, less
// than half the image) are marked edited.
func DetectEditBoundariesSingleImage(img Image) EditBoundaryInfo {
	width, height := img.Dims()
	result := NewEditBoundaryInfo(width, height)
	if width < 3 || height < 3 {
		return result
	}

	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			idx := y*width + x

			maxGradient := 0.0
			maxSecondDeriv := 0.0
			for ch := 0; ch < 4; ch++ {
				if grad := gradientMagnitude(img, x, y, ch, width, height); grad > maxGradient {
					maxGradient = grad
				}
				if deriv := secondDerivative(img, x, y, ch, width, height); deriv > maxSecondDeriv {
					maxSecondDeriv = deriv
				}
			}

			if maxGradient > gradientThreshold && maxSecondDeriv > secondDerivativeThreshold {
				result.BoundaryWeights[idx] = math.Min(1.0, maxGradient/(gradientThreshold*2.0))
			}
		}
	}

	visited := make([]bool, width*height)
	var stack []int

	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			idx := y*width + x
			if result.BoundaryWeights[idx] > 0 || visited[idx] {
				continue
			}

			stack = stack[:0]
			stack = append(stack, idx)
			var region []int

			for len(stack) > 0 {
				current := stack[len(stack)-1]
				stack = stack[:len(stack)-1]

				if visited[current] {
					continue
				}
				visited[current] = true

				if result.BoundaryWeights[current] > 0 {
					continue
				}
				region = append(region, current)

				cx := current % width
				cy := current / width
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						if dx == 0 && dy == 0 {
							continue
						}
						nx := cx + dx
						ny := cy + dy
						if nx >= 1 && nx < width-1 && ny >= 1 && ny < height-1 {
							nidx := ny*width + nx
							if !visited[nidx] {
								stack = append(stack, nidx)
							}
						}
					}
				}
			}

			if len(region) >= minEditRegionSize && len(region) < width*height/2 {
				for _, ridx := range region {
					result.IsEditedRegion[ridx] = true
				}
			}
		}
	}

	return result
}

// ComputeTransitionWeights converts edit/boundary flags into a smooth
// [0, 1] blend field. Pixels deep inside unedited regions stay 0, pixels
// deep inside edited regions reach 1, and boundary pixels ease between
// the two with a cosine ramp on the normalised distance to the nearest
// unedited versus nearest edited pixel.
func ComputeTransitionWeights(boundaries EditBoundaryInfo, transitionRadius int) []float64 {
	weights := make([]float64, boundaries.Width*boundaries.Height)
	if len(boundaries.IsEditedRegion) != len(weights) ||
		len(boundaries.BoundaryWeights) != len(weights) {
		return weights
	}

	if transitionRadius <= 0 {
		for i := range weights {
			if boundaries.IsEditedRegion[i] {
				weights[i] = 1.0
			}
		}
		return weights
	}

	for y := 0; y < boundaries.Height; y++ {
		for x := 0; x < boundaries.Width; x++ {
			idx := y*boundaries.Width + x

			if boundaries.BoundaryWeights[idx] <= 0 {
				if boundaries.IsEditedRegion[idx] {
					weights[idx] = 1.0
				}
				continue
			}

			minDistToUnedited := float64(transitionRadius + 1)
			minDistToEdited := float64(transitionRadius + 1)

			for dy := -transitionRadius; dy <= transitionRadius; dy++ {
				for dx := -transitionRadius; dx <= transitionRadius; dx++ {
					nx := x + dx
					ny := y + dy
					if nx < 0 || nx >= boundaries.Width || ny < 0 || ny >= boundaries.Height {
						continue
					}

					nidx := ny*boundaries.Width + nx
					dist := math.Sqrt(float64(dx*dx + dy*dy))

					if boundaries.IsEditedRegion[nidx] {
						if dist < minDistToEdited {
							minDistToEdited = dist
						}
					} else if boundaries.BoundaryWeights[nidx] <= 0 {
						if dist < minDistToUnedited {
							minDistToUnedited = dist
						}
					}
				}
			}

			totalDist := minDistToEdited + minDistToUnedited
			if totalDist > 0 {
				t := minDistToUnedited / totalDist
				weights[idx] = 0.5 * (1.0 - math.Cos(t*math.Pi))
			} else if boundaries.IsEditedRegion[idx] {
				weights[idx] = 1.0
			}
		}
	}

	return weights
}
