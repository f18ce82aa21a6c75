package anomaly

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio"

	"github.com/SushanthKS06/IsoLog/internal/ierrors"
)

// treeDTO mirrors itreeNode with exported fields, since the model file
// format (§6: "opaque blob produced by the anomaly trainer, namespaced
// per model kind") is a JSON encoding of the trained structure rather
// than a hand-rolled binary format.
type treeDTO struct {
	Feature   int      `json:"feature"`
	Threshold float64  `json:"threshold,omitempty"`
	Left      *treeDTO `json:"left,omitempty"`
	Right     *treeDTO `json:"right,omitempty"`
	Size      int      `json:"size,omitempty"`
}

func toDTO(n *itreeNode) *treeDTO {
	if n == nil {
		return nil
	}
	return &treeDTO{
		Feature:   n.feature,
		Threshold: n.threshold,
		Left:      toDTO(n.left),
		Right:     toDTO(n.right),
		Size:      n.size,
	}
}

func fromDTO(d *treeDTO) *itreeNode {
	if d == nil {
		return nil
	}
	return &itreeNode{
		feature:   d.Feature,
		threshold: d.Threshold,
		left:      fromDTO(d.Left),
		right:     fromDTO(d.Right),
		size:      d.Size,
	}
}

type forestDTO struct {
	SubsampleSize int        `json:"subsample_size"`
	Trees         []*treeDTO `json:"trees"`
}

type ocsvmDTO struct {
	Mean     []float64 `json:"mean"`
	MeanDist float64   `json:"mean_dist"`
	StdDist  float64   `json:"std_dist"`
}

// modelFile is the on-disk envelope: kind namespaces the blob (so
// "isolation_forest" and "ocsvm" model files never collide under one
// models_path directory), version lets the loader reject incompatible
// formats instead of crashing on a schema change, and FeatureSchemaHash
// lets it reject a model trained against a different feature vector
// layout (Design Note: "magic bytes, version, feature-schema hash...
// loading across versions that mismatch the feature-schema hash is
// ModelUnavailable, not a crash") instead of silently scoring against
// the wrong feature indices.
type modelFile struct {
	Kind              string          `json:"kind"`
	Version           int             `json:"version"`
	FeatureSchemaHash string          `json:"feature_schema_hash"`
	TrainedAt         time.Time       `json:"trained_at"`
	Payload           json.RawMessage `json:"payload"`
}

const modelFileVersion = 1

// featureSchemaHash fingerprints the current feature vector layout
// (internal/detection/anomaly/features.go) so a models_path directory
// left over from a build with a different numFeatures is detected
// instead of silently unmarshaled into mismatched tree/hyperplane
// dimensions.
func featureSchemaHash() string {
	h := fnv.New32a()
	fmt.Fprintf(h, "v%d:features=%d", modelFileVersion, numFeatures)
	return fmt.Sprintf("%08x", h.Sum32())
}

func saveModel(dir, kind string, payload interface{}, now time.Time) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	mf := modelFile{
		Kind:              kind,
		Version:           modelFileVersion,
		FeatureSchemaHash: featureSchemaHash(),
		TrainedAt:         now,
		Payload:           raw,
	}
	data, err := json.MarshalIndent(mf, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}
	// A trainer retrain runs concurrently with a model reload elsewhere
	// (e.g. a future admin reload-model operation); renameio.WriteFile
	// writes to a temp file and renames over the target so a reader
	// never observes a partially-written model blob.
	return renameio.WriteFile(filepath.Join(dir, kind+".json"), data, 0640)
}

func loadModel(dir, kind string, payload interface{}) (time.Time, error) {
	data, err := os.ReadFile(filepath.Join(dir, kind+".json"))
	if err != nil {
		return time.Time{}, err
	}
	var mf modelFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return time.Time{}, err
	}
	if mf.Kind != kind {
		return time.Time{}, ierrors.New(ierrors.KindModelUnavailable,
			fmt.Errorf("model file kind mismatch: want %s, got %s", kind, mf.Kind))
	}
	if mf.Version != modelFileVersion {
		return time.Time{}, ierrors.New(ierrors.KindModelUnavailable,
			fmt.Errorf("unsupported model file version %d", mf.Version))
	}
	if mf.FeatureSchemaHash != featureSchemaHash() {
		return time.Time{}, ierrors.New(ierrors.KindModelUnavailable,
			fmt.Errorf("model file feature schema %s does not match current %s", mf.FeatureSchemaHash, featureSchemaHash()))
	}
	if err := json.Unmarshal(mf.Payload, payload); err != nil {
		return time.Time{}, err
	}
	return mf.TrainedAt, nil
}

// Save persists the forest under modelsPath/isolation_forest.json.
func (f *IsolationForest) Save(modelsPath string, now time.Time) error {
	dto := forestDTO{SubsampleSize: f.subsampleSize}
	for _, t := range f.trees {
		dto.Trees = append(dto.Trees, toDTO(t))
	}
	return saveModel(modelsPath, "isolation_forest", dto, now)
}

// LoadIsolationForest restores a previously trained forest.
func LoadIsolationForest(modelsPath string) (*IsolationForest, error) {
	var dto forestDTO
	if _, err := loadModel(modelsPath, "isolation_forest", &dto); err != nil {
		return nil, err
	}
	f := &IsolationForest{subsampleSize: dto.SubsampleSize}
	for _, t := range dto.Trees {
		f.trees = append(f.trees, fromDTO(t))
	}
	return f, nil
}

// Save persists the one-class-SVM model under modelsPath/ocsvm.json.
func (m *OneClassSVM) Save(modelsPath string, now time.Time) error {
	dto := ocsvmDTO{Mean: m.mean, MeanDist: m.meanDist, StdDist: m.stdDist}
	return saveModel(modelsPath, "ocsvm", dto, now)
}

// LoadOneClassSVM restores a previously trained one-class-SVM model.
func LoadOneClassSVM(modelsPath string) (*OneClassSVM, error) {
	var dto ocsvmDTO
	if _, err := loadModel(modelsPath, "ocsvm", &dto); err != nil {
		return nil, err
	}
	return &OneClassSVM{mean: dto.Mean, meanDist: dto.MeanDist, stdDist: dto.StdDist}, nil
}
