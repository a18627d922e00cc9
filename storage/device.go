package storage

import (
	"os"

	"github.com/pkg/errors"
)

// Device is a block device or image file opened for positioned reads only.
type Device struct {
	file *os.File
	path string
}

func OpenDevice(path string) (*Device, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "open device %s", path)
	}

	return &Device{file: f, path: path}, nil
}

func (d *Device) Path() string {
	return d.path
}

func (d *Device) ReadAt(p []byte, off int64) (int, error) {
	return d.file.ReadAt(p, off)
}

func (d *Device) Close() error {
	if d.file == nil {
		return nil
	}

	err := d.file.Close()
	d.file = nil

	return err
}
