package renderer

import (
	"errors"

	"github.com/spaghettifunk/aurora/engine/containers"
	"github.com/spaghettifunk/aurora/engine/core"
	"github.com/spaghettifunk/aurora/engine/renderer/rhi"
)

// SchedulePipelineReload queues a pipeline to be rebuilt after the current
// frame. A full queue drops the request. Requests are tagged with the
// pipeline generation, so scheduling the same pipeline twice rebuilds it
// once.
func (r *Renderer) SchedulePipelineReload(index uint32) {
	h, err := r.pipelines.Handle(index)
	if err != nil {
		// reported by ReloadPipelines
		h = containers.Handle{Index: index}
	}
	if err := r.reloads.Enqueue(h); err != nil {
		core.LogWarn("Cannot schedule reload of pipeline %d: %v", index, err)
	}
}

// SchedulePipelineReloadByShader queues every pipeline compiled from the
// shader at path and returns how many were queued.
func (r *Renderer) SchedulePipelineReloadByShader(path string) int {
	scheduled := 0
	r.pipelines.Each(func(index uint32, p rhi.Pipeline) {
		if p.Desc.UsesShader(path) {
			r.SchedulePipelineReload(index)
			scheduled++
		}
	})
	if scheduled == 0 {
		core.LogDebug("No pipeline uses shader %s", path)
	}
	return scheduled
}

// ReloadPipelines rebuilds every queued pipeline from its creation
// description. A pipeline that fails to rebuild stays in place, so a broken
// shader edit never takes the renderer down.
func (r *Renderer) ReloadPipelines() {
	for !r.reloads.IsEmpty() {
		h, err := r.reloads.Dequeue()
		if err != nil {
			return
		}
		index := h.Index
		old, err := r.pipelines.Resolve(h)
		if errors.Is(err, rhi.ErrStaleIndex) {
			core.LogDebug("Pipeline %d was already reloaded", index)
			continue
		}
		if err != nil {
			core.LogWarn("%d was not a valid pipeline index. No further action is performed", index)
			r.reloads.Clear()
			return
		}

		pipeline, err := r.device.CreatePipeline(old.Desc, r.compiler, true)
		if err != nil {
			core.LogWarn("Failed to reload pipeline %s: %v", old.Desc.Name, err)
			continue
		}
		pipeline.Index = index

		// the previous pipeline may still be referenced by frames in flight
		if err := r.device.WaitIdle(); err != nil {
			core.LogError("Failed to wait for the gpu before reloading %s: %v", old.Desc.Name, err)
			pipeline.Destroy()
			continue
		}
		if err := r.pipelines.Replace(index, pipeline); err != nil {
			core.LogError("Failed to replace pipeline %s: %v", old.Desc.Name, err)
			pipeline.Destroy()
			continue
		}
		old.Destroy()
		core.LogInfo("Reloaded pipeline %s", old.Desc.Name)
	}
}
