//go:build windows
// +build windows

package status

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	ole "github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
)

// progID is the registered class of the PowerPoint automation server.
const progID = "PowerPoint.Application"

// sFalse is returned by CoInitializeEx when the thread already joined the
// apartment; it still has to be balanced by CoUninitialize.
const sFalse = 0x00000001

// DefaultConnector attaches to a running PowerPoint through COM.
func DefaultConnector() Connector {
	return ConnectorFunc(connectCOM)
}

type comSession struct {
	app  *oleObject
	once sync.Once
}

func connectCOM() (Session, error) {
	// COM apartments belong to a thread; keep this goroutine on one until Close.
	runtime.LockOSThread()

	if err := ole.CoInitializeEx(0, ole.COINIT_APARTMENTTHREADED); err != nil {
		var oleErr *ole.OleError
		if !errors.As(err, &oleErr) || oleErr.Code() != sFalse {
			runtime.UnlockOSThread()
			return nil, fmt.Errorf("initializing COM: %w", err)
		}
	}

	disp, err := activeDispatch()
	if err != nil {
		ole.CoUninitialize()
		runtime.UnlockOSThread()
		return nil, err
	}
	return &comSession{app: &oleObject{disp: disp}}, nil
}

// activeDispatch attaches to the running instance without launching one.
func activeDispatch() (*ole.IDispatch, error) {
	clsid, err := ole.ClassIDFrom(progID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s not registered: %v", ErrNotRunning, progID, err)
	}
	unknown, err := ole.GetActiveObject(clsid, ole.IID_IUnknown)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotRunning, err)
	}
	defer unknown.Release()

	disp, err := unknown.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		return nil, fmt.Errorf("querying IDispatch: %w", err)
	}
	return disp, nil
}

func (s *comSession) Application() Object {
	return s.app
}

func (s *comSession) Close() {
	s.once.Do(func() {
		s.app.Release()
		ole.CoUninitialize()
		runtime.UnlockOSThread()
	})
}

// oleObject wraps an IDispatch handle.
type oleObject struct {
	disp *ole.IDispatch
}

func (o *oleObject) Object(name string, args ...interface{}) (Object, error) {
	if o.disp == nil {
		return nil, fmt.Errorf("reading %s: released object", name)
	}
	var (
		v   *ole.VARIANT
		err error
	)
	if name == "Item" {
		v, err = oleutil.CallMethod(o.disp, name, comArgs(args)...)
	} else {
		v, err = oleutil.GetProperty(o.disp, name, comArgs(args)...)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	disp := v.ToIDispatch()
	if disp == nil {
		v.Clear()
		return nil, fmt.Errorf("reading %s: not an object", name)
	}
	// The variant owns the reference; ToIDispatch does not AddRef.
	return &oleObject{disp: disp}, nil
}

func (o *oleObject) Value(name string) (interface{}, error) {
	if o.disp == nil {
		return nil, fmt.Errorf("reading %s: released object", name)
	}
	v, err := oleutil.GetProperty(o.disp, name)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	defer v.Clear()
	return v.Value(), nil
}

func (o *oleObject) Call(name string, args ...interface{}) error {
	if o.disp == nil {
		return fmt.Errorf("calling %s: released object", name)
	}
	v, err := oleutil.CallMethod(o.disp, name, comArgs(args)...)
	if err != nil {
		return fmt.Errorf("calling %s: %w", name, err)
	}
	v.Clear()
	return nil
}

func (o *oleObject) Release() {
	if o.disp != nil {
		o.disp.Release()
		o.disp = nil
	}
}

// comArgs narrows Go integers to VT_I4; PowerPoint's collection and Export
// parameters are declared as Long/Int.
func comArgs(args []interface{}) []interface{} {
	out := make([]interface{}, len(args))
	for i, a := range args {
		switch n := a.(type) {
		case int:
			out[i] = int32(n)
		case int64:
			out[i] = int32(n)
		default:
			out[i] = a
		}
	}
	return out
}
