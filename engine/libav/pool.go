// pool.go implements a pool for reusing astiav.Frame objects.

package libav

import (
	"runtime"
	"sync"

	"github.com/asticode/go-astiav"
)

var framePool = sync.Pool{
	New: func() any {
		f := astiav.AllocFrame()
		runtime.SetFinalizer(f, func(f *astiav.Frame) {
			f.Free()
		})
		return f
	},
}

func getFrame() *astiav.Frame {
	return framePool.Get().(*astiav.Frame)
}

func putFrame(f *astiav.Frame) {
	f.Unref()
	framePool.Put(f)
}
