// Package postprocess - provides Non-Maximum Suppression for detection results.
package postprocess

import (
	"sort"
	"sync"

	"github.com/nvr-ai/go-yolov3/images"
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	// Candidates overlapping a kept box with IoU >= IoUThreshold are discarded.
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou_threshold"`
	// If true, all classes of an image compete in one group.
	ClassAgnostic bool `json:"class_agnostic" yaml:"class_agnostic"`
	// Number of goroutines suppressing classes in parallel. Values < 1 mean 1.
	NumWorkers int `json:"num_workers" yaml:"num_workers"`
}

// classGroup is the candidate subsequence of one class.
type classGroup struct {
	class      int
	candidates []Result
}

// partitionByClass splits candidates into per-class groups in one pass.
//
// Arguments:
//   - candidates: The candidates of a single image.
//   - agnostic: If true, all candidates go into a single group.
//
// Returns:
//   - Groups ordered by ascending class, each preserving the input order.
func partitionByClass(candidates []Result, agnostic bool) []classGroup {
	if len(candidates) == 0 {
		return nil
	}
	if agnostic {
		return []classGroup{{class: -1, candidates: candidates}}
	}

	byClass := make(map[int][]Result)
	for _, c := range candidates {
		byClass[c.Class] = append(byClass[c.Class], c)
	}

	groups := make([]classGroup, 0, len(byClass))
	for class, members := range byClass {
		groups = append(groups, classGroup{class: class, candidates: members})
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].class < groups[j].class
	})

	return groups
}

// SuppressClass performs greedy Non-Maximum Suppression on the candidates of one class.
//
// The candidates are stable-sorted by descending confidence, then the highest
// remaining candidate is kept and every remaining candidate with IoU >= iouThreshold
// against it is discarded, until none remain.
//
// Arguments:
//   - candidates: The candidates of one class. The slice is not modified.
//   - iouThreshold: The suppression threshold.
//
// Returns:
//   - The kept candidates in descending confidence order.
func SuppressClass(candidates []Result, iouThreshold float32) []Result {
	n := len(candidates)
	if n == 0 {
		return nil
	}

	sorted := make([]Result, n)
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	kept := make([]Result, 0, n)
	used := make([]bool, n)

	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}

		anchor := sorted[i]
		kept = append(kept, anchor)
		used[i] = true

		for j := i + 1; j < n; j++ {
			if used[j] {
				continue
			}
			if images.CalculateIoU(anchor.Box, sorted[j].Box) >= iouThreshold {
				used[j] = true
			}
		}
	}

	return kept
}

// ApplyNMS filters overlapping detections of one image using per-class greedy
// Non-Maximum Suppression.
//
// Classes are independent, so they are suppressed on a pool of config.NumWorkers
// goroutines. Each worker writes only the slot of the group it owns.
//
// Arguments:
//   - candidates: The candidates of a single image, in any order.
//   - config: NMS configuration.
//
// Returns:
//   - The kept candidates grouped by ascending class, then descending confidence.
//     Returns nil if no candidates are provided.
func ApplyNMS(candidates []Result, config *NMSConfig) []Result {
	groups := partitionByClass(candidates, config.ClassAgnostic)
	if len(groups) == 0 {
		return nil
	}

	kept := make([][]Result, len(groups))

	workers := min(max(config.NumWorkers, 1), len(groups))
	if workers == 1 {
		for i, g := range groups {
			kept[i] = SuppressClass(g.candidates, config.IoUThreshold)
		}
		return flatten(kept)
	}

	jobs := make(chan int, len(groups))
	for i := range groups {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				kept[i] = SuppressClass(groups[i].candidates, config.IoUThreshold)
			}
		}()
	}
	wg.Wait()

	return flatten(kept)
}

func flatten(groups [][]Result) []Result {
	total := 0
	for _, g := range groups {
		total += len(g)
	}

	out := make([]Result, 0, total)
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
