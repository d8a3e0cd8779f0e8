// Package container serialises ColourNativeImage buffers to a compact
// versioned binary stream: magic, format version, a JSON metadata
// record, then float16-packed RGBA pixels. It works purely over
// io.Writer/io.Reader; file handling belongs to the caller.
package container

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/x448/float16"

	"github.com/synesthesia-audio/resyne/spectral"
)

// FormatVersion is the current on-disk format revision.
const FormatVersion uint16 = 1

const (
	maxDimension   = 1 << 20
	maxPixelCount  = 1 << 28
	maxMetadataLen = 1 << 20
)

var magic = [8]byte{'R', 'S', 'Y', 'N', 'I', 'M', 'G', '1'}

// Write serialises the image. Pixel channels are stored as float16; the
// codec's [0, 1] channel range loses at most half-precision quantisation
// error, well under the dB window's own resolution.
func Write(w io.Writer, img *spectral.ColourNativeImage) error {
	if img == nil {
		return fmt.Errorf("container: nil image")
	}
	if img.Width < 0 || img.Height < 0 ||
		img.Width > maxDimension || img.Height > maxDimension {
		return fmt.Errorf("container: bad dimensions %dx%d", img.Width, img.Height)
	}
	if len(img.Pixels) != img.Width*img.Height {
		return fmt.Errorf("container: pixel buffer length %d, want %d",
			len(img.Pixels), img.Width*img.Height)
	}

	metadataBytes, err := json.Marshal(img.Metadata)
	if err != nil {
		return fmt.Errorf("container: marshal metadata: %w", err)
	}
	if len(metadataBytes) > maxMetadataLen {
		return fmt.Errorf("container: metadata too large (%d bytes)", len(metadataBytes))
	}

	bw := bufio.NewWriter(w)
	if _, err := bw.Write(magic[:]); err != nil {
		return fmt.Errorf("container: write magic: %w", err)
	}

	var header [14]byte
	binary.LittleEndian.PutUint16(header[0:2], FormatVersion)
	binary.LittleEndian.PutUint32(header[2:6], uint32(len(metadataBytes)))
	binary.LittleEndian.PutUint32(header[6:10], uint32(img.Width))
	binary.LittleEndian.PutUint32(header[10:14], uint32(img.Height))
	if _, err := bw.Write(header[:]); err != nil {
		return fmt.Errorf("container: write header: %w", err)
	}
	if _, err := bw.Write(metadataBytes); err != nil {
		return fmt.Errorf("container: write metadata: %w", err)
	}

	var pixelBuf [8]byte
	for _, pixel := range img.Pixels {
		binary.LittleEndian.PutUint16(pixelBuf[0:2], float16.Fromfloat32(float32(pixel.R)).Bits())
		binary.LittleEndian.PutUint16(pixelBuf[2:4], float16.Fromfloat32(float32(pixel.G)).Bits())
		binary.LittleEndian.PutUint16(pixelBuf[4:6], float16.Fromfloat32(float32(pixel.B)).Bits())
		binary.LittleEndian.PutUint16(pixelBuf[6:8], float16.Fromfloat32(float32(pixel.A)).Bits())
		if _, err := bw.Write(pixelBuf[:]); err != nil {
			return fmt.Errorf("container: write pixels: %w", err)
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("container: flush: %w", err)
	}
	return nil
}

// Read deserialises an image written by Write. Truncated, alien or
// oversized input returns an error; Read never panics on bad bytes.
func Read(r io.Reader) (*spectral.ColourNativeImage, error) {
	br := bufio.NewReader(r)

	var gotMagic [8]byte
	if _, err := io.ReadFull(br, gotMagic[:]); err != nil {
		return nil, fmt.Errorf("container: read magic: %w", err)
	}
	if gotMagic != magic {
		return nil, fmt.Errorf("container: not a spectrogram container (magic %q)", gotMagic[:])
	}

	var header [14]byte
	if _, err := io.ReadFull(br, header[:]); err != nil {
		return nil, fmt.Errorf("container: read header: %w", err)
	}
	version := binary.LittleEndian.Uint16(header[0:2])
	if version == 0 || version > FormatVersion {
		return nil, fmt.Errorf("container: unsupported format version %d", version)
	}
	metadataLen := binary.LittleEndian.Uint32(header[2:6])
	width := binary.LittleEndian.Uint32(header[6:10])
	height := binary.LittleEndian.Uint32(header[10:14])

	if metadataLen > maxMetadataLen {
		return nil, fmt.Errorf("container: metadata length %d too large", metadataLen)
	}
	if width > maxDimension || height > maxDimension ||
		uint64(width)*uint64(height) > maxPixelCount {
		return nil, fmt.Errorf("container: bad dimensions %dx%d", width, height)
	}

	metadataBytes := make([]byte, metadataLen)
	if _, err := io.ReadFull(br, metadataBytes); err != nil {
		return nil, fmt.Errorf("container: read metadata: %w", err)
	}
	var metadata spectral.AudioMetadata
	if metadataLen > 0 {
		if err := json.Unmarshal(metadataBytes, &metadata); err != nil {
			return nil, fmt.Errorf("container: parse metadata: %w", err)
		}
	}

	img := spectral.NewColourNativeImage(int(width), int(height))
	img.Metadata = metadata

	var pixelBuf [8]byte
	for i := range img.Pixels {
		if _, err := io.ReadFull(br, pixelBuf[:]); err != nil {
			return nil, fmt.Errorf("container: read pixels: %w", err)
		}
		img.Pixels[i] = spectral.RGBAColour{
			R: float64(float16.Frombits(binary.LittleEndian.Uint16(pixelBuf[0:2])).Float32()),
			G: float64(float16.Frombits(binary.LittleEndian.Uint16(pixelBuf[2:4])).Float32()),
			B: float64(float16.Frombits(binary.LittleEndian.Uint16(pixelBuf[4:6])).Float32()),
			A: float64(float16.Frombits(binary.LittleEndian.Uint16(pixelBuf[6:8])).Float32()),
		}
	}

	return img, nil
}
