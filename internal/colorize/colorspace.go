package colorize

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// ForceGrayscale returns a 3-channel BGR copy of src whose channels are all
// equal to src's luma. It runs for every input, gray or not.
func ForceGrayscale(src gocv.Mat) (gocv.Mat, error) {
	gray := gocv.NewMat()
	defer gray.Close()

	switch src.Channels() {
	case 1:
		src.CopyTo(&gray)
	case 3:
		gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)
	case 4:
		gocv.CvtColor(src, &gray, gocv.ColorBGRAToGray)
	default:
		return gocv.NewMat(), fmt.Errorf("unsupported channel count %d", src.Channels())
	}

	out := gocv.NewMat()
	gocv.CvtColor(gray, &out, gocv.ColorGrayToBGR)
	return out, nil
}

// ToLab scales an 8-bit BGR image to [0,1] and converts it to float32 Lab.
func ToLab(bgr gocv.Mat) gocv.Mat {
	scaled := gocv.NewMat()
	defer scaled.Close()
	bgr.ConvertToWithParams(&scaled, gocv.MatTypeCV32FC3, 1.0/255.0, 0)

	lab := gocv.NewMat()
	gocv.CvtColor(scaled, &lab, gocv.ColorBGRToLab)
	return lab
}

// LuminanceInput resizes lab to the network input size, ignoring aspect
// ratio, and returns its L plane minus LuminanceMean.
func LuminanceInput(lab gocv.Mat) gocv.Mat {
	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(lab, &resized, image.Pt(InputSize, InputSize), 0, 0, gocv.InterpolationLinear)

	channels := gocv.Split(resized)
	defer closeAll(channels)

	l := channels[0].Clone()
	l.SubtractFloat(LuminanceMean)
	return l
}

// Reconstruct combines the full-resolution L plane of lab with ab, upsampled
// bilinearly to lab's size, and returns the 8-bit BGR image. Values outside
// [0,1] after the Lab round trip are clipped.
func Reconstruct(lab, ab gocv.Mat) (gocv.Mat, error) {
	if ab.Channels() != 2 {
		return gocv.NewMat(), fmt.Errorf("ab has %d channels, want 2", ab.Channels())
	}

	upsampled := gocv.NewMat()
	defer upsampled.Close()
	gocv.Resize(ab, &upsampled, image.Pt(lab.Cols(), lab.Rows()), 0, 0, gocv.InterpolationLinear)

	labChannels := gocv.Split(lab)
	defer closeAll(labChannels)
	abChannels := gocv.Split(upsampled)
	defer closeAll(abChannels)

	merged := gocv.NewMat()
	defer merged.Close()
	gocv.Merge([]gocv.Mat{labChannels[0], abChannels[0], abChannels[1]}, &merged)

	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(merged, &bgr, gocv.ColorLabToBGR)

	return toDisplayRange(bgr)
}

// toDisplayRange clips float BGR to [0,1] and truncates 255*v to uint8.
func toDisplayRange(bgr gocv.Mat) (gocv.Mat, error) {
	values, err := bgr.DataPtrFloat32()
	if err != nil {
		return gocv.NewMat(), err
	}

	out := make([]byte, len(values))
	for i, v := range values {
		switch {
		case v < 0:
			v = 0
		case v > 1:
			v = 1
		}
		out[i] = uint8(255 * v)
	}
	return gocv.NewMatFromBytes(bgr.Rows(), bgr.Cols(), gocv.MatTypeCV8UC3, out)
}

func closeAll(mats []gocv.Mat) {
	for i := range mats {
		mats[i].Close()
	}
}
