package service

import (
	"fmt"

	"github.com/parleykit/parley/internal/utils"
)

func GenerateThreadID() string {
	return fmt.Sprintf("thread-%s", utils.GenerateUUID())
}
