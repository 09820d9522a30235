package report

import (
	"fmt"
	"image"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/johnsonhungm/Rad-bull/internal/imaging"
)

// secondaryCaptureSOPClass identifies a Secondary Capture Image object,
// the SOP class for images that were converted rather than acquired.
const secondaryCaptureSOPClass = "1.2.840.10008.5.1.4.1.1.7"

// Archive stores each anonymized capture as a DICOM secondary-capture
// object so the run leaves an importable trail alongside the PNG. One
// Archive models one automation session: every capture joins the same
// study and series, numbered by instance.
type Archive struct {
	Dir string

	studyUID  string
	seriesUID string
}

// NewArchive returns an Archive writing to dir.
func NewArchive(dir string) *Archive {
	return &Archive{Dir: dir, studyUID: newUID(), seriesUID: newUID()}
}

// Save writes img as an 8-bit MONOCHROME2 secondary capture and returns
// the file path. Patient identification stays empty: the source images are
// anonymized and the archive must stay that way.
func (a *Archive) Save(img image.Image, taken time.Time, instance int) (string, error) {
	if err := os.MkdirAll(a.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}

	gray := imaging.ToGray(img)
	width := gray.Bounds().Dx()
	height := gray.Bounds().Dy()

	nativeFrame := frame.NewNativeFrame[uint8](8, height, width, width*height, 1)
	for y := 0; y < height; y++ {
		copy(nativeFrame.RawData[y*width:(y+1)*width], gray.Pix[y*gray.Stride:y*gray.Stride+width])
	}
	pixelDataInfo := dicom.PixelDataInfo{
		Frames: []*frame.Frame{
			{
				Encapsulated: false,
				NativeData:   nativeFrame,
			},
		},
	}

	ds := dicom.Dataset{Elements: []*dicom.Element{
		mustNewElement(tag.TransferSyntaxUID, []string{"1.2.840.10008.1.2.1"}),
		mustNewElement(tag.SOPClassUID, []string{secondaryCaptureSOPClass}),
		mustNewElement(tag.SOPInstanceUID, []string{newUID()}),
		mustNewElement(tag.StudyInstanceUID, []string{a.studyUID}),
		mustNewElement(tag.SeriesInstanceUID, []string{a.seriesUID}),
		mustNewElement(tag.StudyDate, []string{taken.Format("20060102")}),
		mustNewElement(tag.StudyTime, []string{taken.Format("150405")}),
		mustNewElement(tag.StudyDescription, []string{"Anonymized chest X-ray capture"}),
		mustNewElement(tag.SeriesNumber, []string{"1"}),
		mustNewElement(tag.InstanceNumber, []string{fmt.Sprintf("%d", instance)}),
		mustNewElement(tag.Modality, []string{"OT"}),
		mustNewElement(tag.PatientName, []string{""}),
		mustNewElement(tag.PatientID, []string{""}),
		mustNewElement(tag.BodyPartExamined, []string{"CHEST"}),
		mustNewElement(tag.Rows, []int{height}),
		mustNewElement(tag.Columns, []int{width}),
		mustNewElement(tag.BitsAllocated, []int{8}),
		mustNewElement(tag.BitsStored, []int{8}),
		mustNewElement(tag.HighBit, []int{7}),
		mustNewElement(tag.PixelRepresentation, []int{0}),
		mustNewElement(tag.SamplesPerPixel, []int{1}),
		mustNewElement(tag.PhotometricInterpretation, []string{"MONOCHROME2"}),
		mustNewElement(tag.PixelData, pixelDataInfo),
	}}

	path := filepath.Join(a.Dir, fmt.Sprintf("capture_%s_%03d.dcm", taken.Format("20060102_150405"), instance))
	if err := writeDataset(path, ds); err != nil {
		return "", err
	}
	return path, nil
}

func writeDataset(path string, ds dicom.Dataset) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := dicom.Write(f, ds); err != nil {
		f.Close()
		return fmt.Errorf("write dicom %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

// mustNewElement creates a new DICOM element, panicking on error.
func mustNewElement(t tag.Tag, value interface{}) *dicom.Element {
	elem, err := dicom.NewElement(t, value)
	if err != nil {
		panic(fmt.Sprintf("failed to create element %v: %v", t, err))
	}
	return elem
}

// newUID derives a DICOM UID from a random UUID, the standard 2.25 OID
// form.
func newUID() string {
	u := uuid.New()
	return "2.25." + new(big.Int).SetBytes(u[:]).String()
}
