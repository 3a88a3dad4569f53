package scene

import (
	"sort"
	"sync"

	"cogentcore.org/core/math32"
)

type node struct {
	spec    MeshSpec
	pose    Pose
	texture string
}

type animKey struct {
	handle Handle
	prop   Property
}

type animation struct {
	from   math32.Vector3
	to     math32.Vector3
	frames float64
	frame  int
}

// Headless is an in-memory Surface. Step advances every running animation
// by one render frame.
type Headless struct {
	mu         sync.RWMutex
	camera     Pose
	attached   bool
	nodes      map[Handle]*node
	nextHandle Handle
	anims      map[animKey]*animation
	listeners  []func(Pose)
	frame      uint64
}

var _ Surface = (*Headless)(nil)

// NewHeadless creates a headless scene with the camera at the given pose
func NewHeadless(camera Pose) *Headless {
	return &Headless{
		camera:     camera,
		nodes:      make(map[Handle]*node),
		nextHandle: Camera + 1,
		anims:      make(map[animKey]*animation),
	}
}

// CameraPose returns the active camera pose
func (h *Headless) CameraPose() Pose {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.camera
}

// SetCameraPose moves the camera, cancels camera animations and notifies
// camera listeners
func (h *Headless) SetCameraPose(p Pose) {
	h.mu.Lock()
	h.camera = p
	delete(h.anims, animKey{Camera, Position})
	delete(h.anims, animKey{Camera, Rotation})
	h.mu.Unlock()
	h.notifyCamera(p)
}

// MoveCamera applies local input. It is ignored while control is detached.
func (h *Headless) MoveCamera(delta Pose) bool {
	h.mu.Lock()
	if !h.attached {
		h.mu.Unlock()
		return false
	}
	h.camera.Position = h.camera.Position.Add(delta.Position)
	h.camera.Rotation = h.camera.Rotation.Add(delta.Rotation)
	p := h.camera
	h.mu.Unlock()

	h.notifyCamera(p)
	return true
}

func (h *Headless) AttachControl() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attached = true
}

func (h *Headless) DetachControl() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attached = false
}

func (h *Headless) ControlAttached() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.attached
}

// OnCameraChanged registers a camera listener
func (h *Headless) OnCameraChanged(fn func(Pose)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
}

func (h *Headless) notifyCamera(p Pose) {
	h.mu.RLock()
	listeners := make([]func(Pose), len(h.listeners))
	copy(listeners, h.listeners)
	h.mu.RUnlock()

	for _, fn := range listeners {
		fn(p)
	}
}

// CreateMesh adds a node and returns its handle
func (h *Headless) CreateMesh(spec MeshSpec) Handle {
	h.mu.Lock()
	defer h.mu.Unlock()

	handle := h.nextHandle
	h.nextHandle++
	h.nodes[handle] = &node{spec: spec, pose: spec.Pose}
	return handle
}

// NodePose returns the current pose of a node or the camera
func (h *Headless) NodePose(handle Handle) (Pose, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if handle == Camera {
		return h.camera, true
	}
	n, ok := h.nodes[handle]
	if !ok {
		return Pose{}, false
	}
	return n.pose, true
}

// SetNodePose teleports a node, cancelling its running animations
func (h *Headless) SetNodePose(handle Handle, p Pose) {
	if handle == Camera {
		h.SetCameraPose(p)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	n, ok := h.nodes[handle]
	if !ok {
		return
	}
	n.pose = p
	delete(h.anims, animKey{handle, Position})
	delete(h.anims, animKey{handle, Rotation})
}

// ApplyTexture records the texture reference on a node
func (h *Headless) ApplyTexture(handle Handle, ref string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n, ok := h.nodes[handle]; ok {
		n.texture = ref
	}
}

// Animate starts (or restarts) an animation from the node's current value
func (h *Headless) Animate(handle Handle, prop Property, to math32.Vector3, frames float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var from Pose
	if handle == Camera {
		from = h.camera
	} else {
		n, ok := h.nodes[handle]
		if !ok {
			return
		}
		from = n.pose
	}

	start := from.Position
	if prop == Rotation {
		start = from.Rotation
	}
	h.anims[animKey{handle, prop}] = &animation{
		from:   start,
		to:     to,
		frames: frames,
	}
}

// Dispose removes a node and its animations
func (h *Headless) Dispose(handle Handle) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.nodes[handle]; !ok {
		return false
	}
	delete(h.nodes, handle)
	delete(h.anims, animKey{handle, Position})
	delete(h.anims, animKey{handle, Rotation})
	return true
}

// Step advances all animations by one render frame
func (h *Headless) Step() {
	h.mu.Lock()
	h.frame++
	cameraMoved := false

	for key, a := range h.anims {
		a.frame++
		value := a.to
		if a.frame < frameCount(a.frames) {
			value = a.from.Lerp(a.to, float32(float64(a.frame)/a.frames))
		} else {
			delete(h.anims, key)
		}

		if key.handle == Camera {
			h.camera = setProperty(h.camera, key.prop, value)
			cameraMoved = true
			continue
		}
		if n, ok := h.nodes[key.handle]; ok {
			n.pose = setProperty(n.pose, key.prop, value)
		}
	}
	camera := h.camera
	h.mu.Unlock()

	if cameraMoved {
		h.notifyCamera(camera)
	}
}

// Animating reports whether any animation is still running
func (h *Headless) Animating() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.anims) > 0
}

// Frame returns the number of frames stepped so far
func (h *Headless) Frame() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.frame
}

func setProperty(p Pose, prop Property, v math32.Vector3) Pose {
	if prop == Rotation {
		p.Rotation = v
	} else {
		p.Position = v
	}
	return p
}

// NodeView is a read-only copy of a node for views
type NodeView struct {
	Handle  Handle
	Kind    Kind
	Name    string
	Text    string
	Linked  Handle
	Pose    Pose
	Texture string
}

// Snapshot returns every node ordered by handle
func (h *Headless) Snapshot() []NodeView {
	h.mu.RLock()
	defer h.mu.RUnlock()

	views := make([]NodeView, 0, len(h.nodes))
	for handle, n := range h.nodes {
		views = append(views, NodeView{
			Handle:  handle,
			Kind:    n.spec.Kind,
			Name:    n.spec.Name,
			Text:    n.spec.Text,
			Linked:  n.spec.LinkedTo,
			Pose:    n.pose,
			Texture: n.texture,
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Handle < views[j].Handle })
	return views
}

// NodeCount returns the number of live nodes
func (h *Headless) NodeCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.nodes)
}
