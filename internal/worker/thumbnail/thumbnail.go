// Package thumbnail derives a fixed-size preview from rendered output.
// A missing thumbnail is never an error: absence of a compatible source
// and failure of the conversion tool both resolve to "no thumbnail".
package thumbnail

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"farmhand/internal/pkg/logger"
	"farmhand/internal/worker/execrun"
)

// geometry is the preview size, shrink-only so smaller frames are not
// upscaled.
const geometry = "200x150>"

// supportedExtensions are the source formats the conversion tool is
// known to handle.
var supportedExtensions = map[string]struct{}{
	".png": {},
	".bmp": {},
	".jpg": {},
	".tga": {},
	".exr": {},
}

// Generator produces PNG previews by invoking an external
// image-conversion tool.
type Generator struct {
	runner      execrun.Runner
	convertPath string
	log         *logger.Logger
}

// New creates a Generator that invokes the conversion tool at
// convertPath through runner.
func New(runner execrun.Runner, convertPath string, log *logger.Logger) *Generator {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Generator{
		runner:      runner,
		convertPath: convertPath,
		log:         log.WithComponent("thumbnail"),
	}
}

// Generate picks the first file with a supported extension and converts
// it into <jobID>_<taskIndex>_thumbnail.png in workDir. It returns the
// thumbnail path, or "" when no compatible source exists or conversion
// fails. Selection among multiple candidates follows the order of
// files, which upstream does not guarantee to be stable.
func (g *Generator) Generate(ctx context.Context, files []string, workDir, jobID string, taskIndex int) string {
	source := ""
	for _, f := range files {
		if _, ok := supportedExtensions[strings.ToLower(filepath.Ext(f))]; ok {
			source = f
			break
		}
	}
	if source == "" {
		g.log.Info("no compatible thumbnail source", "job_id", jobID, "task_index", taskIndex)
		return ""
	}

	outPath := filepath.Join(workDir, fmt.Sprintf("%s_%d_thumbnail.png", jobID, taskIndex))

	res := g.runner.Run(ctx, g.convertPath, []string{source, "-resize", geometry, outPath}, workDir)
	if res == nil {
		// Runner already logged the failure context.
		g.log.Info("thumbnail conversion failed, continuing without preview",
			"job_id", jobID,
			"task_index", taskIndex,
			"source", source,
		)
		return ""
	}

	g.log.Debug("thumbnail generated", "source", source, "thumbnail", outPath)
	return outPath
}
