package prompts

// CaptionSystemPrompt defines the role and output rules for image captioning.
// The caption text is what gets embedded, so it must be short, literal, and
// free of boilerplate lead-ins that would pollute the vector.
const CaptionSystemPrompt = `You are a captioning assistant. Respond with ONLY a single short caption (max 15 words). No punctuation at start or end. Do NOT start with phrases like "This image shows", "The image depicts", or "Image:".`

// CaptionUserPrompt is the per-image instruction sent alongside the image.
const CaptionUserPrompt = `Provide a concise caption for the attached image (<=15 words).`
