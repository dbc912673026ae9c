package ml

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// Predictor is the inference surface shared by every trained model.
type Predictor interface {
	// PredictValue returns the estimated target and a confidence score for
	// one feature vector.
	PredictValue(x []float64) (value, confidence float64)
}

// regressionConfidence is reported for models without class probabilities.
const regressionConfidence = 0.8

// PredictValue implements Predictor: the majority class and its averaged
// probability across trees.
func (f *RandomForest) PredictValue(x []float64) (float64, float64) {
	return f.Predict(x)
}

// PredictValue implements Predictor with a fixed confidence, since boosted
// regressors expose no probability estimate.
func (g *GradientBoosting) PredictValue(x []float64) (float64, float64) {
	return g.Predict(x), regressionConfidence
}

func init() {
	gob.Register(&RandomForest{})
	gob.Register(&GradientBoosting{})
}

type modelEnvelope struct {
	Model Predictor
}

// EncodeModel serialises a trained model to an opaque blob.
func EncodeModel(model Predictor) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(modelEnvelope{Model: model}); err != nil {
		return nil, fmt.Errorf("encode model: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeModel restores a model previously produced by EncodeModel.
func DecodeModel(data []byte) (Predictor, error) {
	var envelope modelEnvelope
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if envelope.Model == nil {
		return nil, fmt.Errorf("decode model: empty envelope")
	}
	return envelope.Model, nil
}

// EncodeScaler serialises a fitted scaler to an opaque blob.
func EncodeScaler(scaler *StandardScaler) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(scaler); err != nil {
		return nil, fmt.Errorf("encode scaler: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeScaler restores a scaler previously produced by EncodeScaler.
func DecodeScaler(data []byte) (*StandardScaler, error) {
	var scaler StandardScaler
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&scaler); err != nil {
		return nil, fmt.Errorf("decode scaler: %w", err)
	}
	return &scaler, nil
}
