// Package artifacts owns the on-disk layout shared by the pipeline and the
// dashboard.
//
// Layout under the data root:
//
//	{run_id}/frames/{video_base}/frame_NNNN.jpg
//	{run_id}/analysis_results/{video_base}_clip.json
//	{run_id}/analysis_results/{video_base}_clip_plot.png
//	{run_id}/analysis_results/{video_base}_yolo.json
//	{run_id}/analysis_results/{video_base}_object_comparison.json
//	{run_id}/analysis_results/{video_base}_feedback_gpt.txt
//	{run_id}/analysis_results/{video_base}_feedback_and_revised_prompt.txt
//
// Writes go through a temp file and rename so a reader never sees a partial
// artifact. Reads validate shape and fail with services.ErrMalformedArtifact
// when required fields are missing.
package artifacts
