package soundproc

import "os"

func statConfig(path string) (os.FileInfo, error) {
	return os.Stat(path)
}
