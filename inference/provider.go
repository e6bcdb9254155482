package inference

import (
	"fmt"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// Provider is an ONNX Runtime execution provider.
type Provider string

const (
	// ProviderCPU runs on the default CPU provider.
	ProviderCPU Provider = "cpu"
	// ProviderCUDA uses NVIDIA CUDA for GPU acceleration.
	ProviderCUDA Provider = "cuda"
	// ProviderCoreML uses Apple CoreML for macOS/iOS acceleration.
	ProviderCoreML Provider = "coreml"
	// ProviderOpenVINO uses Intel OpenVINO.
	ProviderOpenVINO Provider = "openvino"
)

// ProviderConfig selects and tunes the execution provider of a session.
type ProviderConfig struct {
	// Backend is the provider. Empty means ProviderCPU.
	Backend Provider `json:"backend" yaml:"backend" validate:"omitempty,oneof=cpu cuda coreml openvino"`
	// DeviceID selects the GPU for CUDA and OpenVINO.
	DeviceID int `json:"device_id" yaml:"device_id" validate:"gte=0"`
	// DeviceType is the OpenVINO device, e.g. "CPU" or "GPU". Empty means "CPU".
	DeviceType string `json:"device_type" yaml:"device_type"`
	// GPUMemLimit caps the CUDA arena in bytes. 0 leaves the default.
	GPUMemLimit int64 `json:"gpu_mem_limit" yaml:"gpu_mem_limit" validate:"gte=0"`
	// IntraOpThreads parallelizes work inside graph nodes. 0 uses the default.
	IntraOpThreads int `json:"intra_op_threads" yaml:"intra_op_threads" validate:"gte=0"`
	// InterOpThreads parallelizes independent graph nodes. 0 uses the default.
	InterOpThreads int `json:"inter_op_threads" yaml:"inter_op_threads" validate:"gte=0"`
}

// sessionOptions builds the native session options for the provider.
// The caller must Destroy the result.
func (p ProviderConfig) sessionOptions() (*ort.SessionOptions, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "error creating ORT session options")
	}

	if err := p.apply(options); err != nil {
		options.Destroy()
		return nil, err
	}
	return options, nil
}

func (p ProviderConfig) apply(options *ort.SessionOptions) error {
	if err := options.SetIntraOpNumThreads(p.IntraOpThreads); err != nil {
		return errors.Wrap(err, "error setting intra-op threads")
	}
	if err := options.SetInterOpNumThreads(p.InterOpThreads); err != nil {
		return errors.Wrap(err, "error setting inter-op threads")
	}
	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended); err != nil {
		return errors.Wrap(err, "error setting graph optimization level")
	}

	switch p.Backend {
	case "", ProviderCPU:
		return nil
	case ProviderCoreML:
		if err := options.AppendExecutionProviderCoreML(0); err != nil {
			return errors.Wrap(err, "error enabling CoreML")
		}
	case ProviderOpenVINO:
		deviceType := p.DeviceType
		if deviceType == "" {
			deviceType = "CPU"
		}
		// See: https://onnxruntime.ai/docs/execution-providers/OpenVINO-ExecutionProvider.html
		err := options.AppendExecutionProviderOpenVINO(map[string]string{
			"device_id":   fmt.Sprintf("%d", p.DeviceID),
			"device_type": deviceType,
		})
		if err != nil {
			return errors.Wrap(err, "error enabling OpenVINO")
		}
	case ProviderCUDA:
		cuda, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return errors.Wrap(err, "error creating CUDA options")
		}
		defer cuda.Destroy()

		settings := map[string]string{"device_id": fmt.Sprintf("%d", p.DeviceID)}
		if p.GPUMemLimit > 0 {
			settings["gpu_mem_limit"] = fmt.Sprintf("%d", p.GPUMemLimit)
		}
		if err := cuda.Update(settings); err != nil {
			return errors.Wrap(err, "error converting CUDA options")
		}
		if err := options.AppendExecutionProviderCUDA(cuda); err != nil {
			return errors.Wrap(err, "error enabling CUDA")
		}
	default:
		return errors.Errorf("unsupported execution provider %q", p.Backend)
	}

	return nil
}
