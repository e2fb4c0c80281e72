package voxel

import "errors"

var errAlreadyRunning = errors.New("voxel: world loop already running")
